package stripe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/subsync/internal/provider/domain"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

const ProviderName = "stripe"

const SignatureHeader = "Stripe-Signature"

// Config configures the Stripe gateway.
type Config struct {
	SecretKey         string
	MaxNetworkRetries int64
	HTTPTimeout       time.Duration
	// CallTimeout bounds each gateway operation; read on every call so it can be hot reloaded.
	CallTimeout func() time.Duration
	// BaseURL overrides the API endpoint, used against local stubs.
	BaseURL string
}

// Gateway implements domain.Gateway on top of a per-instance Stripe client.
type Gateway struct {
	api         *client.API
	callTimeout func() time.Duration
	log         *zap.Logger
	failures    FailureRecorder
}

// FailureRecorder receives classified remote call failures.
type FailureRecorder interface {
	RecordProviderFailure(ctx context.Context, operation, reason string)
}

var _ domain.Gateway = (*Gateway)(nil)

func New(cfg Config, log *zap.Logger, failures FailureRecorder) (*Gateway, error) {
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return nil, domain.ErrNotConfigured
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("provider.stripe")

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	backendCfg := &stripego.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripego.Int64(cfg.MaxNetworkRetries),
		LeveledLogger:     log.Sugar(),
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripego.String(cfg.BaseURL)
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripego.Backends{
		API:     stripego.GetBackendWithConfig(stripego.APIBackend, backendCfg),
		Connect: stripego.GetBackendWithConfig(stripego.ConnectBackend, backendCfg),
		Uploads: stripego.GetBackendWithConfig(stripego.UploadsBackend, backendCfg),
	})

	callTimeout := cfg.CallTimeout
	if callTimeout == nil {
		callTimeout = func() time.Duration { return 10 * time.Second }
	}

	return &Gateway{
		api:         api,
		callTimeout: callTimeout,
		log:         log,
		failures:    failures,
	}, nil
}

func (g *Gateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, g.callTimeout())
}

func (g *Gateway) CreateCustomer(ctx context.Context, p domain.CreateCustomerParams) (string, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	params := &stripego.CustomerParams{Email: stripego.String(p.Email)}
	params.Context = ctx
	if p.Name != "" {
		params.Name = stripego.String(p.Name)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	customer, err := g.api.Customers.New(params)
	if err != nil {
		return "", g.fail(ctx, "create_customer", err)
	}
	return customer.ID, nil
}

func (g *Gateway) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	params := &stripego.CustomerListParams{Email: stripego.String(email)}
	params.Context = ctx
	params.Limit = stripego.Int64(1)

	iter := g.api.Customers.List(params)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", g.fail(ctx, "find_customer", err)
	}
	return "", nil
}

func (g *Gateway) AttachPaymentMethod(ctx context.Context, customerID, methodID string) error {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	params := &stripego.PaymentMethodAttachParams{Customer: stripego.String(customerID)}
	params.Context = ctx
	if _, err := g.api.PaymentMethods.Attach(methodID, params); err != nil {
		return g.fail(ctx, "attach_payment_method", err)
	}
	return nil
}

func (g *Gateway) SetDefaultPaymentMethod(ctx context.Context, customerID, methodID string) error {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	params := &stripego.CustomerParams{
		InvoiceSettings: &stripego.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripego.String(methodID),
		},
	}
	params.Context = ctx
	if _, err := g.api.Customers.Update(customerID, params); err != nil {
		return g.fail(ctx, "set_default_payment_method", err)
	}
	return nil
}

func (g *Gateway) CreateSubscription(ctx context.Context, p domain.CreateSubscriptionParams) (domain.RemoteSubscription, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	params := &stripego.SubscriptionParams{
		Customer: stripego.String(p.CustomerID),
		Items: []*stripego.SubscriptionItemsParams{
			{Price: stripego.String(p.PriceID)},
		},
	}
	params.Context = ctx
	if p.DefaultPaymentMethodID != "" {
		params.DefaultPaymentMethod = stripego.String(p.DefaultPaymentMethodID)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	sub, err := g.api.Subscriptions.New(params)
	if err != nil {
		return domain.RemoteSubscription{}, g.fail(ctx, "create_subscription", err)
	}
	return toRemote(sub), nil
}

func (g *Gateway) UpdateSubscriptionItem(ctx context.Context, subscriptionID, newPriceID string, proration bool) (domain.RemoteSubscription, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	current, err := g.retrieve(ctx, subscriptionID)
	if err != nil {
		return domain.RemoteSubscription{}, g.fail(ctx, "update_subscription_item", err)
	}
	remote := toRemote(current)
	if remote.ItemID == "" {
		return domain.RemoteSubscription{}, domain.ErrRemoteNotFound
	}

	params := &stripego.SubscriptionParams{
		Items: []*stripego.SubscriptionItemsParams{
			{ID: stripego.String(remote.ItemID), Price: stripego.String(newPriceID)},
		},
		ProrationBehavior: stripego.String(prorationBehavior(proration)),
	}
	params.Context = ctx

	sub, err := g.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return domain.RemoteSubscription{}, g.fail(ctx, "update_subscription_item", err)
	}
	return toRemote(sub), nil
}

func (g *Gateway) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancelAtPeriodEnd bool) (domain.RemoteSubscription, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	params := &stripego.SubscriptionParams{
		CancelAtPeriodEnd: stripego.Bool(cancelAtPeriodEnd),
	}
	params.Context = ctx
	if !cancelAtPeriodEnd {
		params.ProrationBehavior = stripego.String(prorationBehavior(true))
	}

	sub, err := g.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return domain.RemoteSubscription{}, g.fail(ctx, "set_cancel_at_period_end", err)
	}
	return toRemote(sub), nil
}

func (g *Gateway) RetrieveSubscription(ctx context.Context, subscriptionID string) (domain.RemoteSubscription, error) {
	ctx, cancel := g.callContext(ctx)
	defer cancel()

	sub, err := g.retrieve(ctx, subscriptionID)
	if err != nil {
		return domain.RemoteSubscription{}, g.fail(ctx, "retrieve_subscription", err)
	}
	return toRemote(sub), nil
}

func (g *Gateway) retrieve(ctx context.Context, subscriptionID string) (*stripego.Subscription, error) {
	params := &stripego.SubscriptionParams{}
	params.Context = ctx
	return g.api.Subscriptions.Get(subscriptionID, params)
}

func prorationBehavior(enabled bool) string {
	if enabled {
		return "create_prorations"
	}
	return "none"
}

func toRemote(sub *stripego.Subscription) domain.RemoteSubscription {
	if sub == nil {
		return domain.RemoteSubscription{}
	}
	remote := domain.RemoteSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		PeriodEnd:         unixTime(sub.CurrentPeriodEnd),
	}
	if sub.Customer != nil {
		remote.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		remote.ItemID = item.ID
		if item.Price != nil {
			remote.PriceID = item.Price.ID
		}
	}
	return remote
}

func unixTime(value int64) *time.Time {
	if value <= 0 {
		return nil
	}
	t := time.Unix(value, 0).UTC()
	return &t
}
