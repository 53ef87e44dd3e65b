// Package webhook verifies inbound provider notifications and hands them to
// the reconciliation engine.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	obscontext "github.com/smallbiznis/subsync/internal/observability/context"
	obslogger "github.com/smallbiznis/subsync/internal/observability/logger"
	"github.com/smallbiznis/subsync/internal/provider"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Registry *provider.Registry
	Engine   subscriptiondomain.Service
}

type Service struct {
	log      *zap.Logger
	registry *provider.Registry
	engine   subscriptiondomain.Service
}

func NewService(p Params) *Service {
	return &Service{
		log:      p.Log.Named("webhook"),
		registry: p.Registry,
		engine:   p.Engine,
	}
}

// Ingest verifies payload against the provider's signing secret and applies
// the event. Nothing reaches the engine unless the signature checks out.
func (s *Service) Ingest(ctx context.Context, providerName string, payload []byte, headers http.Header) (subscriptiondomain.ApplyResult, error) {
	endpoint, err := s.registry.Lookup(providerName)
	if err != nil {
		return subscriptiondomain.ApplyResult{}, fmt.Errorf("%w: %q", err, strings.TrimSpace(providerName))
	}

	log := obslogger.WithContext(ctx, s.log).With(zap.String("provider", endpoint.Name))

	signature := strings.TrimSpace(headers.Get(endpoint.SignatureHeader))
	if signature == "" {
		log.Warn("webhook without signature header", zap.String("header", endpoint.SignatureHeader))
		return subscriptiondomain.ApplyResult{}, providerdomain.ErrInvalidSignature
	}

	event, err := endpoint.Gateway.VerifyWebhookSignature(payload, signature, endpoint.WebhookSecret)
	if err != nil {
		switch {
		case errors.Is(err, providerdomain.ErrInvalidSignature):
			log.Warn("webhook signature rejected")
		case errors.Is(err, providerdomain.ErrInvalidPayload):
			log.Warn("webhook payload malformed", zap.Error(err))
		default:
			log.Error("webhook verification failed", zap.Error(err))
		}
		return subscriptiondomain.ApplyResult{}, err
	}
	event.Provider = endpoint.Name

	ctx = obscontext.WithEventID(ctx, event.ID)
	result, err := s.engine.ApplyProviderEvent(ctx, event)
	if err != nil {
		log.Warn("webhook event not applied",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("kind", string(subscriptiondomain.KindOf(err))),
			zap.Error(err),
		)
		return subscriptiondomain.ApplyResult{}, err
	}
	return result, nil
}
