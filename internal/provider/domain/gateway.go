package domain

import (
	"context"
	"time"
)

//go:generate mockgen -destination=mocks/mock_gateway.go -package=mocks . Gateway

// Gateway is the payment provider capability consumed by the reconciliation engine.
// Implementations must bound every remote call and report transport failures as
// ErrProviderUnavailable.
type Gateway interface {
	// CreateCustomer creates a remote customer and returns its id.
	CreateCustomer(ctx context.Context, params CreateCustomerParams) (string, error)
	// FindCustomerByEmail returns the most recent customer for email, or "" if none exists.
	FindCustomerByEmail(ctx context.Context, email string) (string, error)
	AttachPaymentMethod(ctx context.Context, customerID, methodID string) error
	SetDefaultPaymentMethod(ctx context.Context, customerID, methodID string) error
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (RemoteSubscription, error)
	// UpdateSubscriptionItem swaps the subscription's single item to newPriceID.
	UpdateSubscriptionItem(ctx context.Context, subscriptionID, newPriceID string, proration bool) (RemoteSubscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (RemoteSubscription, error)
	RetrieveSubscription(ctx context.Context, subscriptionID string) (RemoteSubscription, error)
	// VerifyWebhookSignature authenticates payload and decodes it into an Event.
	VerifyWebhookSignature(payload []byte, signatureHeader, secret string) (Event, error)
}

type CreateCustomerParams struct {
	Email          string
	Name           string
	IdempotencyKey string
	Metadata       map[string]string
}

type CreateSubscriptionParams struct {
	CustomerID             string
	PriceID                string
	DefaultPaymentMethodID string
	IdempotencyKey         string
	Metadata               map[string]string
}

// Remote subscription statuses as reported by the provider.
const (
	RemoteStatusActive            = "active"
	RemoteStatusTrialing          = "trialing"
	RemoteStatusPastDue           = "past_due"
	RemoteStatusUnpaid            = "unpaid"
	RemoteStatusIncomplete        = "incomplete"
	RemoteStatusIncompleteExpired = "incomplete_expired"
	RemoteStatusCanceled          = "canceled"
)

// RemoteSubscription is the provider's view of a subscription.
type RemoteSubscription struct {
	ID                string
	CustomerID        string
	ItemID            string
	PriceID           string
	Status            string
	CancelAtPeriodEnd bool
	PeriodEnd         *time.Time
}

func (r RemoteSubscription) IsActive() bool {
	return r.Status == RemoteStatusActive || r.Status == RemoteStatusTrialing
}

func (r RemoteSubscription) IsCanceled() bool {
	return r.Status == RemoteStatusCanceled || r.Status == RemoteStatusIncompleteExpired
}

func (r RemoteSubscription) IsPaymentFailing() bool {
	switch r.Status {
	case RemoteStatusPastDue, RemoteStatusUnpaid, RemoteStatusIncomplete:
		return true
	default:
		return false
	}
}
