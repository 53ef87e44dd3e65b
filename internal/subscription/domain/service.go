package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	eventledgerdomain "github.com/smallbiznis/subsync/internal/eventledger/domain"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
)

type CreateSubscriptionRequest struct {
	ProductID       string `json:"product_id"`
	PriceID         string `json:"price_id"`
	PaymentMethodID string `json:"payment_method_id"`
}

type UpdateSubscriptionRequest struct {
	ProductID string `json:"product_id"`
	PriceID   string `json:"price_id"`
}

// ApplyResult describes what ApplyProviderEvent did with an event.
type ApplyResult struct {
	Outcome        eventledgerdomain.Outcome `json:"outcome"`
	Duplicate      bool                      `json:"duplicate"`
	SubscriptionID string                    `json:"subscription_id,omitempty"`
	Status         SubscriptionStatus        `json:"status,omitempty"`
}

// ReconcileResult labels a sweep of a single subscription.
type ReconcileResult string

const (
	ReconcileUnchanged ReconcileResult = "unchanged"
	ReconcileUpdated   ReconcileResult = "updated"
	ReconcileMissing   ReconcileResult = "missing"
)

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	CreateSubscription(ctx context.Context, userID snowflake.ID, req CreateSubscriptionRequest) (Subscription, error)
	UpdateSubscription(ctx context.Context, userID snowflake.ID, req UpdateSubscriptionRequest) (Subscription, error)
	CancelSubscription(ctx context.Context, userID snowflake.ID) (Subscription, error)
	RenewSubscription(ctx context.Context, userID snowflake.ID) (Subscription, error)
	ApplyProviderEvent(ctx context.Context, event providerdomain.Event) (ApplyResult, error)

	GetSubscription(ctx context.Context, userID snowflake.ID) (Subscription, error)
	ListSubscriptions(ctx context.Context, userID snowflake.ID) ([]Subscription, error)
	HasAccess(ctx context.Context, userID snowflake.ID, products []string) (bool, error)

	// ReconcileSubscription pulls the remote state of one subscription and
	// applies it like a provider event observed now.
	ReconcileSubscription(ctx context.Context, id snowflake.ID) (ReconcileResult, error)
	ListForSweep(ctx context.Context, limit int) ([]Subscription, error)
}

type SubscriptionResponse struct {
	ID                     string             `json:"id"`
	UserID                 string             `json:"user_id"`
	ProviderSubscriptionID string             `json:"provider_subscription_id"`
	PriceID                string             `json:"price_id"`
	Status                 SubscriptionStatus `json:"status"`
	PeriodEnd              *time.Time         `json:"period_end,omitempty"`
	CancelledAt            *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

func ToResponse(s Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                     s.ID.String(),
		UserID:                 s.UserID.String(),
		ProviderSubscriptionID: s.ProviderSubscriptionID,
		PriceID:                s.PriceID.String(),
		Status:                 s.Status,
		PeriodEnd:              s.PeriodEnd,
		CancelledAt:            s.CancelledAt,
		CreatedAt:              s.CreatedAt,
		UpdatedAt:              s.UpdatedAt,
	}
}
