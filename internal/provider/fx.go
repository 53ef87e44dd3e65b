package provider

import (
	"fmt"
	"time"

	"github.com/smallbiznis/subsync/internal/clock"
	"github.com/smallbiznis/subsync/internal/config"
	obsmetrics "github.com/smallbiznis/subsync/internal/observability/metrics"
	"github.com/smallbiznis/subsync/internal/provider/domain"
	"github.com/smallbiznis/subsync/internal/provider/fake"
	"github.com/smallbiznis/subsync/internal/provider/stripe"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("provider",
	fx.Provide(NewEndpoint),
	fx.Provide(func(e Endpoint) domain.Gateway { return e.Gateway }),
	fx.Provide(func(e Endpoint) *Registry { return NewRegistry(e) }),
)

type Params struct {
	fx.In

	Config  config.Config
	Holder  *config.ReconcileConfigHolder
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
	Clock   clock.Clock
}

// NewEndpoint builds the configured payment provider.
func NewEndpoint(p Params) (Endpoint, error) {
	switch p.Config.PaymentProvider {
	case stripe.ProviderName:
		gw, err := stripe.New(stripe.Config{
			SecretKey:         p.Config.Stripe.SecretKey,
			MaxNetworkRetries: p.Config.Stripe.MaxNetworkRetries,
			HTTPTimeout:       p.Config.Stripe.HTTPTimeout,
			CallTimeout:       func() time.Duration { return p.Holder.Get().ProviderTimeout },
		}, p.Log, p.Metrics)
		if err != nil {
			return Endpoint{}, fmt.Errorf("stripe gateway: %w", err)
		}
		return Endpoint{
			Name:            stripe.ProviderName,
			Gateway:         gw,
			WebhookSecret:   p.Config.Stripe.WebhookSecret,
			SignatureHeader: stripe.SignatureHeader,
		}, nil
	case fake.ProviderName:
		if p.Config.IsProduction() {
			return Endpoint{}, fmt.Errorf("fake payment provider is not allowed in production")
		}
		p.Log.Warn("using in-memory payment provider")
		return Endpoint{
			Name:            fake.ProviderName,
			Gateway:         fake.New(p.Clock.Now),
			WebhookSecret:   p.Config.Stripe.WebhookSecret,
			SignatureHeader: "X-Fake-Signature",
		}, nil
	default:
		return Endpoint{}, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, p.Config.PaymentProvider)
	}
}
