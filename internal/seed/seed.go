// Package seed loads a product catalog file into the database at startup.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pricedomain "github.com/smallbiznis/subsync/internal/price/domain"
	productdomain "github.com/smallbiznis/subsync/internal/product/domain"
	"github.com/spf13/viper"
)

type PriceSeed struct {
	ProviderPriceID string `mapstructure:"providerPriceId"`
	UnitAmount      int64  `mapstructure:"unitAmount"`
	Currency        string `mapstructure:"currency"`
	Interval        string `mapstructure:"interval"`
}

type ProductSeed struct {
	Code              string      `mapstructure:"code"`
	Name              string      `mapstructure:"name"`
	Description       string      `mapstructure:"description"`
	ProviderProductID string      `mapstructure:"providerProductId"`
	Prices            []PriceSeed `mapstructure:"prices"`
}

type Result struct {
	ProductsCreated int
	PricesCreated   int
}

// LoadCatalog reads the products list from a yaml or json file.
func LoadCatalog(path string) ([]ProductSeed, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var products []ProductSeed
	if err := v.UnmarshalKey("products", &products); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	return products, nil
}

// EnsureCatalog creates missing products and prices. Entries that already
// exist are left untouched.
func EnsureCatalog(ctx context.Context, products productdomain.Service, prices pricedomain.Service, catalog []ProductSeed) (Result, error) {
	var res Result
	for _, item := range catalog {
		productID, created, err := ensureProduct(ctx, products, item)
		if err != nil {
			return res, err
		}
		if created {
			res.ProductsCreated++
		}

		for _, p := range item.Prices {
			_, err := prices.Create(ctx, pricedomain.CreateRequest{
				ProductID:       productID,
				ProviderPriceID: p.ProviderPriceID,
				UnitAmount:      p.UnitAmount,
				Currency:        p.Currency,
				Interval:        p.Interval,
			})
			switch {
			case err == nil:
				res.PricesCreated++
			case errors.Is(err, pricedomain.ErrDuplicatePrice):
			default:
				return res, fmt.Errorf("price %s: %w", p.ProviderPriceID, err)
			}
		}
	}
	return res, nil
}

func ensureProduct(ctx context.Context, products productdomain.Service, item ProductSeed) (string, bool, error) {
	resp, err := products.Create(ctx, productdomain.CreateRequest{
		Code:              item.Code,
		Name:              item.Name,
		Description:       item.Description,
		ProviderProductID: item.ProviderProductID,
	})
	if err == nil {
		return resp.ID, true, nil
	}
	if !errors.Is(err, productdomain.ErrDuplicateProduct) {
		return "", false, fmt.Errorf("product %s: %w", item.Name, err)
	}

	ref := strings.TrimSpace(item.Code)
	if ref == "" {
		ref = item.Name
	}
	ids, err := products.ResolveRefs(ctx, []string{ref})
	if err != nil {
		return "", false, fmt.Errorf("product %s: %w", item.Name, err)
	}
	if len(ids) == 0 {
		return "", false, fmt.Errorf("product %s: %w with a different code", item.Name, productdomain.ErrDuplicateProduct)
	}
	return ids[0].String(), false, nil
}
