package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	pricedomain "github.com/smallbiznis/subsync/internal/price/domain"
	productdomain "github.com/smallbiznis/subsync/internal/product/domain"
)

// catalogMaxAge bounds how long clients may cache the public product list.
const catalogMaxAge = 60

// ListProducts serves the public catalog. ?currency= narrows each product's
// prices and drops products left without any.
func (s *Server) ListProducts(c *gin.Context) {
	products, err := s.productSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if currency := strings.ToLower(strings.TrimSpace(c.Query("currency"))); currency != "" {
		products = filterByCurrency(products, currency)
	}
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", catalogMaxAge))
	c.JSON(http.StatusOK, gin.H{"data": products})
}

func filterByCurrency(products []productdomain.Response, currency string) []productdomain.Response {
	out := make([]productdomain.Response, 0, len(products))
	for _, product := range products {
		prices := make([]pricedomain.Response, 0, len(product.Prices))
		for _, price := range product.Prices {
			if strings.EqualFold(price.Currency, currency) {
				prices = append(prices, price)
			}
		}
		if len(prices) == 0 {
			continue
		}
		product.Prices = prices
		out = append(out, product)
	}
	return out
}

// GetProduct accepts a product id or code.
func (s *Server) GetProduct(c *gin.Context) {
	ctx := c.Request.Context()
	ids, err := s.productSvc.ResolveRefs(ctx, []string{strings.TrimSpace(c.Param("id"))})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if len(ids) == 0 {
		AbortWithError(c, productdomain.ErrNotFound)
		return
	}

	product, err := s.productSvc.Get(ctx, ids[0].String())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

type createProductRequest struct {
	Code              string `json:"code"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	ProviderProductID string `json:"provider_product_id"`
}

func (s *Server) CreateProduct(c *gin.Context) {
	var body createProductRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	product, err := s.productSvc.Create(c.Request.Context(), productdomain.CreateRequest{
		Code:              strings.TrimSpace(body.Code),
		Name:              strings.TrimSpace(body.Name),
		Description:       strings.TrimSpace(body.Description),
		ProviderProductID: strings.TrimSpace(body.ProviderProductID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": product})
}

type createPriceRequest struct {
	ProductID       string `json:"product_id"`
	ProviderPriceID string `json:"provider_price_id"`
	UnitAmount      int64  `json:"unit_amount"`
	Currency        string `json:"currency"`
	Interval        string `json:"interval"`
}

// CreatePrice attaches a price to a product given by id or code.
func (s *Server) CreatePrice(c *gin.Context) {
	var body createPriceRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	ctx := c.Request.Context()

	productRef := strings.TrimSpace(body.ProductID)
	ids, err := s.productSvc.ResolveRefs(ctx, []string{productRef})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if len(ids) > 0 {
		productRef = ids[0].String()
	}

	price, err := s.priceSvc.Create(ctx, pricedomain.CreateRequest{
		ProductID:       productRef,
		ProviderPriceID: strings.TrimSpace(body.ProviderPriceID),
		UnitAmount:      body.UnitAmount,
		Currency:        strings.TrimSpace(body.Currency),
		Interval:        strings.TrimSpace(body.Interval),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": price})
}
