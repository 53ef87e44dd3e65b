package repository

import (
	"context"

	"github.com/smallbiznis/subsync/internal/eventledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Record(ctx context.Context, db *gorm.DB, event *domain.ProcessedEvent) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, provider, eventID string) (*domain.ProcessedEvent, error) {
	var event domain.ProcessedEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, event_id, event_type, provider_subscription_id, outcome, payload, occurred_at, processed_at
		 FROM processed_events WHERE provider = ? AND event_id = ?`,
		provider,
		eventID,
	).Scan(&event).Error
	if err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, nil
	}
	return &event, nil
}

func (r *repo) ListBySubscription(ctx context.Context, db *gorm.DB, providerSubscriptionID string) ([]domain.ProcessedEvent, error) {
	var events []domain.ProcessedEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, event_id, event_type, provider_subscription_id, outcome, payload, occurred_at, processed_at
		 FROM processed_events WHERE provider_subscription_id = ? ORDER BY occurred_at ASC, id ASC`,
		providerSubscriptionID,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
