package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	eventledgerdomain "github.com/smallbiznis/subsync/internal/eventledger/domain"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"go.uber.org/zap"
)

// maxWebhookBody bounds what a provider notification may carry.
const maxWebhookBody = 1 << 20

func (s *Server) HandleProviderWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(payload) > maxWebhookBody {
		s.log.Warn("rejecting oversized webhook", zap.String("provider", provider))
		AbortWithError(c, ErrPayloadTooLarge)
		return
	}

	result, err := s.webhookSvc.Ingest(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil {
		// an authenticated but unreadable event will never parse; acknowledge it
		// so the provider stops redelivering
		if errors.Is(err, providerdomain.ErrInvalidPayload) || errors.Is(err, subscriptiondomain.ErrInvalidEvent) {
			s.log.Warn("discarding malformed webhook", zap.String("provider", provider), zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"status": "discarded"})
			return
		}
		AbortWithError(c, err)
		return
	}

	status := "ok"
	if result.Duplicate {
		status = "duplicate"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "outcome": result.Outcome})
}

type processedEventResponse struct {
	EventID     string                    `json:"event_id"`
	Provider    string                    `json:"provider"`
	EventType   string                    `json:"event_type"`
	Outcome     eventledgerdomain.Outcome `json:"outcome"`
	OccurredAt  time.Time                 `json:"occurred_at"`
	ProcessedAt time.Time                 `json:"processed_at"`
}

func (s *Server) ListSubscriptionEvents(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	events, err := s.ledgerRepo.ListBySubscription(c.Request.Context(), s.db, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := make([]processedEventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, processedEventResponse{
			EventID:     event.EventID,
			Provider:    event.Provider,
			EventType:   event.EventType,
			Outcome:     event.Outcome,
			OccurredAt:  event.OccurredAt,
			ProcessedAt: event.ProcessedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
