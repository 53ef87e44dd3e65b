// Package domain contains the subscription model and the lifecycle engine contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	StatusActive         SubscriptionStatus = "ACTIVE"
	StatusActiveUntilEnd SubscriptionStatus = "ACTIVE_UNTIL_END"
	StatusIncomplete     SubscriptionStatus = "INCOMPLETE"
	StatusCancelled      SubscriptionStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition can leave the status.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == StatusCancelled
}

// GrantsAccess reports whether the status entitles the owner to the product.
func (s SubscriptionStatus) GrantsAccess() bool {
	return s == StatusActive || s == StatusActiveUntilEnd
}

// Subscription mirrors one provider subscription owned by a user. At most one
// non-terminal row exists per user.
type Subscription struct {
	ID                     snowflake.ID       `gorm:"primaryKey"`
	UserID                 snowflake.ID       `gorm:"not null;index"`
	ProviderSubscriptionID string             `gorm:"not null;uniqueIndex"`
	PriceID                snowflake.ID       `gorm:"not null"`
	Status                 SubscriptionStatus `gorm:"type:text;not null"`
	PeriodEnd              *time.Time         `gorm:""`
	LastEventAt            *time.Time         `gorm:""`
	CancelledAt            *time.Time         `gorm:""`
	Version                int64              `gorm:"not null;default:1"`
	CreatedAt              time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt              time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// IsStale reports whether an event that occurred at t is older than the last
// state the row reflects. Equal timestamps are not stale.
func (s Subscription) IsStale(t time.Time) bool {
	return s.LastEventAt != nil && t.Before(*s.LastEventAt)
}

// AdvanceLastEvent moves last_event_at forward to t. It never moves back.
func (s *Subscription) AdvanceLastEvent(t time.Time) {
	if s.LastEventAt != nil && !t.After(*s.LastEventAt) {
		return
	}
	t = t.UTC()
	s.LastEventAt = &t
}

// WithinPaidPeriod reports whether now is still inside the paid period.
func (s Subscription) WithinPaidPeriod(now time.Time) bool {
	return s.PeriodEnd == nil || !now.After(*s.PeriodEnd)
}
