package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
)

func (s *Server) CreateSubscription(c *gin.Context) {
	var req subscriptiondomain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sub, err := s.subscriptionSvc.CreateSubscription(c.Request.Context(), userIDFrom(c), subscriptiondomain.CreateSubscriptionRequest{
		ProductID:       strings.TrimSpace(req.ProductID),
		PriceID:         strings.TrimSpace(req.PriceID),
		PaymentMethodID: strings.TrimSpace(req.PaymentMethodID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subscriptiondomain.ToResponse(sub)})
}

func (s *Server) UpdateSubscription(c *gin.Context) {
	var req subscriptiondomain.UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sub, err := s.subscriptionSvc.UpdateSubscription(c.Request.Context(), userIDFrom(c), subscriptiondomain.UpdateSubscriptionRequest{
		ProductID: strings.TrimSpace(req.ProductID),
		PriceID:   strings.TrimSpace(req.PriceID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": subscriptiondomain.ToResponse(sub)})
}

func (s *Server) CancelSubscription(c *gin.Context) {
	sub, err := s.subscriptionSvc.CancelSubscription(c.Request.Context(), userIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": subscriptiondomain.ToResponse(sub)})
}

func (s *Server) RenewSubscription(c *gin.Context) {
	sub, err := s.subscriptionSvc.RenewSubscription(c.Request.Context(), userIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": subscriptiondomain.ToResponse(sub)})
}

func (s *Server) GetSubscription(c *gin.Context) {
	sub, err := s.subscriptionSvc.GetSubscription(c.Request.Context(), userIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": subscriptiondomain.ToResponse(sub)})
}

func (s *Server) ListSubscriptions(c *gin.Context) {
	items, err := s.subscriptionSvc.ListSubscriptions(c.Request.Context(), userIDFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]subscriptiondomain.SubscriptionResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, subscriptiondomain.ToResponse(item))
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CheckAccess(c *gin.Context) {
	products := normalizeRefs(c.QueryArray("product"))

	ok, err := s.subscriptionSvc.HasAccess(c.Request.Context(), userIDFrom(c), products)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"has_access": ok}})
}

// normalizeRefs accepts both repeated and comma separated product params.
func normalizeRefs(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
