// Package fake provides an in-memory payment provider used for local runs and tests.
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/subsync/internal/provider/domain"
)

const ProviderName = "fake"

// Gateway is a deterministic in-memory domain.Gateway.
type Gateway struct {
	mu sync.Mutex

	now           func() time.Time
	period        time.Duration
	seq           int
	customers     map[string]string // id -> email
	attachments   map[string]string // method -> customer
	defaults      map[string]string // customer -> method
	subscriptions map[string]*domain.RemoteSubscription
	idempotency   map[string]idempotentCreate
	failures      map[string]error
	calls         map[string]int
}

var _ domain.Gateway = (*Gateway)(nil)

// idempotentCreate remembers what a create idempotency key was first used for.
type idempotentCreate struct {
	subscriptionID string
	fingerprint    string
}

func New(now func() time.Time) *Gateway {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Gateway{
		now:           now,
		period:        30 * 24 * time.Hour,
		customers:     map[string]string{},
		attachments:   map[string]string{},
		defaults:      map[string]string{},
		subscriptions: map[string]*domain.RemoteSubscription{},
		idempotency:   map[string]idempotentCreate{},
		failures:      map[string]error{},
		calls:         map[string]int{},
	}
}

// FailNext makes the next call to op return err.
func (g *Gateway) FailNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op] = err
}

// Calls reports how many times op was invoked.
func (g *Gateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// SeedCustomer registers a customer that already exists remotely.
func (g *Gateway) SeedCustomer(id, email string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.customers[id] = strings.ToLower(email)
}

// Subscription returns a copy of the remote subscription state.
func (g *Gateway) Subscription(id string) (domain.RemoteSubscription, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	sub, ok := g.subscriptions[id]
	if !ok {
		return domain.RemoteSubscription{}, false
	}
	return *sub, true
}

// SetRemoteStatus mutates remote state the way a provider-side change would.
func (g *Gateway) SetRemoteStatus(id, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if sub, ok := g.subscriptions[id]; ok {
		sub.Status = status
	}
}

// DefaultPaymentMethod returns the customer's default method.
func (g *Gateway) DefaultPaymentMethod(customerID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.defaults[customerID]
}

func (g *Gateway) begin(op string) error {
	g.calls[op]++
	if err, ok := g.failures[op]; ok {
		delete(g.failures, op)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (g *Gateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_%06d", prefix, g.seq)
}

func (g *Gateway) CreateCustomer(_ context.Context, p domain.CreateCustomerParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("create_customer"); err != nil {
		return "", err
	}
	if id, ok := g.idempotency[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		return id, nil
	}
	id := g.nextID("cus")
	g.customers[id] = strings.ToLower(p.Email)
	if p.IdempotencyKey != "" {
		g.idempotency[p.IdempotencyKey] = id
	}
	return id, nil
}

func (g *Gateway) FindCustomerByEmail(_ context.Context, email string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("find_customer"); err != nil {
		return "", err
	}
	email = strings.ToLower(email)
	var found string
	for id, e := range g.customers {
		if e == email && id > found {
			found = id
		}
	}
	return found, nil
}

func (g *Gateway) AttachPaymentMethod(_ context.Context, customerID, methodID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("attach_payment_method"); err != nil {
		return err
	}
	if owner, ok := g.attachments[methodID]; ok && owner != customerID {
		return fmt.Errorf("%w: payment method attached to another customer", domain.ErrProviderRejected)
	}
	g.attachments[methodID] = customerID
	return nil
}

func (g *Gateway) SetDefaultPaymentMethod(_ context.Context, customerID, methodID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("set_default_payment_method"); err != nil {
		return err
	}
	g.defaults[customerID] = methodID
	return nil
}

func (g *Gateway) CreateSubscription(_ context.Context, p domain.CreateSubscriptionParams) (domain.RemoteSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("create_subscription"); err != nil {
		return domain.RemoteSubscription{}, err
	}
	fingerprint := p.CustomerID + "|" + p.PriceID + "|" + p.DefaultPaymentMethodID
	if prior, ok := g.idempotency[p.IdempotencyKey]; ok && p.IdempotencyKey != "" {
		if prior.fingerprint != fingerprint {
			return domain.RemoteSubscription{}, fmt.Errorf("%w: idempotency key %s reused with different parameters",
				domain.ErrProviderRejected, p.IdempotencyKey)
		}
		return *g.subscriptions[prior.subscriptionID], nil
	}
	if _, ok := g.customers[p.CustomerID]; !ok {
		return domain.RemoteSubscription{}, domain.ErrRemoteNotFound
	}
	periodEnd := g.now().Add(g.period)
	sub := &domain.RemoteSubscription{
		ID:         g.nextID("sub"),
		CustomerID: p.CustomerID,
		ItemID:     g.nextID("si"),
		PriceID:    p.PriceID,
		Status:     domain.RemoteStatusActive,
		PeriodEnd:  &periodEnd,
	}
	g.subscriptions[sub.ID] = sub
	if p.IdempotencyKey != "" {
		g.idempotency[p.IdempotencyKey] = idempotentCreate{subscriptionID: sub.ID, fingerprint: fingerprint}
	}
	return *sub, nil
}

func (g *Gateway) UpdateSubscriptionItem(_ context.Context, subscriptionID, newPriceID string, _ bool) (domain.RemoteSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("update_subscription_item"); err != nil {
		return domain.RemoteSubscription{}, err
	}
	sub, ok := g.subscriptions[subscriptionID]
	if !ok {
		return domain.RemoteSubscription{}, domain.ErrRemoteNotFound
	}
	sub.PriceID = newPriceID
	return *sub, nil
}

func (g *Gateway) SetCancelAtPeriodEnd(_ context.Context, subscriptionID string, cancel bool) (domain.RemoteSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("set_cancel_at_period_end"); err != nil {
		return domain.RemoteSubscription{}, err
	}
	sub, ok := g.subscriptions[subscriptionID]
	if !ok {
		return domain.RemoteSubscription{}, domain.ErrRemoteNotFound
	}
	sub.CancelAtPeriodEnd = cancel
	return *sub, nil
}

func (g *Gateway) RetrieveSubscription(_ context.Context, subscriptionID string) (domain.RemoteSubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin("retrieve_subscription"); err != nil {
		return domain.RemoteSubscription{}, err
	}
	sub, ok := g.subscriptions[subscriptionID]
	if !ok {
		return domain.RemoteSubscription{}, domain.ErrRemoteNotFound
	}
	return *sub, nil
}

// envelope is the wire format accepted by VerifyWebhookSignature. The
// signature header must equal the shared secret.
type envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Object  json.RawMessage `json:"object"`
}

type object struct {
	ID                string `json:"id"`
	Customer          string `json:"customer"`
	Subscription      string `json:"subscription"`
	Email             string `json:"email"`
	Status            string `json:"status"`
	PriceID           string `json:"price"`
	CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
	PeriodEnd         int64  `json:"period_end"`
}

func (g *Gateway) VerifyWebhookSignature(payload []byte, signatureHeader, secret string) (domain.Event, error) {
	if secret == "" {
		return domain.Event{}, domain.ErrNotConfigured
	}
	if signatureHeader != secret {
		return domain.Event{}, domain.ErrInvalidSignature
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	if env.ID == "" {
		return domain.Event{}, fmt.Errorf("%w: missing event id", domain.ErrInvalidPayload)
	}
	var obj object
	if len(env.Object) > 0 {
		if err := json.Unmarshal(env.Object, &obj); err != nil {
			return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
		}
	}

	evt := domain.Event{
		ID:         env.ID,
		Provider:   ProviderName,
		Type:       domain.EventType(env.Type),
		OccurredAt: time.Unix(env.Created, 0).UTC(),
		Raw:        payload,
	}
	switch evt.Type {
	case domain.EventInvoicePaymentSucceeded, domain.EventInvoicePaymentFailed:
		evt.Data = domain.InvoiceData{InvoiceID: obj.ID, CustomerID: obj.Customer, SubscriptionID: obj.Subscription}
	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		remote := domain.RemoteSubscription{
			ID:                obj.ID,
			CustomerID:        obj.Customer,
			PriceID:           obj.PriceID,
			Status:            obj.Status,
			CancelAtPeriodEnd: obj.CancelAtPeriodEnd,
		}
		if obj.PeriodEnd > 0 {
			t := time.Unix(obj.PeriodEnd, 0).UTC()
			remote.PeriodEnd = &t
		}
		evt.Data = domain.SubscriptionData{Subscription: remote}
	case domain.EventCustomerCreated:
		evt.Data = domain.CustomerData{CustomerID: obj.ID, Email: obj.Email}
	case domain.EventPaymentMethodAttached:
		evt.Data = domain.PaymentMethodData{PaymentMethodID: obj.ID, CustomerID: obj.Customer}
	default:
		evt.Data = domain.UnhandledData{}
	}
	return evt, nil
}
