package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeNoop         Outcome = "noop"
	OutcomeIgnoredStale Outcome = "ignored_stale"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeUnhandled    Outcome = "unhandled"
)

// ProcessedEvent is a write-once record of a provider event the engine has handled.
type ProcessedEvent struct {
	ID                     snowflake.ID   `gorm:"primaryKey"`
	Provider               string         `gorm:"not null"`
	EventID                string         `gorm:"column:event_id;not null"`
	EventType              string         `gorm:"not null"`
	ProviderSubscriptionID *string        `gorm:"column:provider_subscription_id"`
	Outcome                Outcome        `gorm:"not null"`
	Payload                datatypes.JSON `gorm:"type:jsonb"`
	OccurredAt             time.Time      `gorm:"not null"`
	ProcessedAt            time.Time      `gorm:"not null"`
}

func (ProcessedEvent) TableName() string { return "processed_events" }

type Repository interface {
	// Record inserts the event unless (provider, event_id) already exists.
	// It reports false for duplicates.
	Record(ctx context.Context, db *gorm.DB, event *ProcessedEvent) (bool, error)
	Find(ctx context.Context, db *gorm.DB, provider, eventID string) (*ProcessedEvent, error)
	ListBySubscription(ctx context.Context, db *gorm.DB, providerSubscriptionID string) ([]ProcessedEvent, error)
}
