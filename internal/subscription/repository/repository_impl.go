package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"github.com/smallbiznis/subsync/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

const subscriptionColumns = `id, user_id, provider_subscription_id, price_id, status, period_end,
	last_event_at, cancelled_at, version, created_at, updated_at`

const openStatuses = `status <> 'CANCELLED'`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	if subscription.Version == 0 {
		subscription.Version = 1
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (`+subscriptionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.UserID,
		subscription.ProviderSubscriptionID,
		subscription.PriceID,
		subscription.Status,
		subscription.PeriodEnd,
		subscription.LastEventAt,
		subscription.CancelledAt,
		subscription.Version,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET price_id = ?, status = ?, period_end = ?, last_event_at = ?, cancelled_at = ?,
		     version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		subscription.PriceID,
		subscription.Status,
		subscription.PeriodEnd,
		subscription.LastEventAt,
		subscription.CancelledAt,
		subscription.UpdatedAt,
		subscription.ID,
		subscription.Version,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return subscriptiondomain.ErrConcurrentUpdate
	}
	subscription.Version++
	return nil
}

func (r *repo) FindByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, tx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
}

func (r *repo) FindOpenByUserID(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, tx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? AND `+openStatuses,
		userID,
	)
}

func (r *repo) FindOpenByUserIDForUpdate(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, tx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? AND `+openStatuses+db.ForUpdate(tx),
		userID,
	)
}

func (r *repo) FindByProviderID(ctx context.Context, tx *gorm.DB, providerSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, tx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider_subscription_id = ?`,
		providerSubscriptionID,
	)
}

func (r *repo) FindByProviderIDForUpdate(ctx context.Context, tx *gorm.DB, providerSubscriptionID string) (*subscriptiondomain.Subscription, error) {
	return r.findOne(ctx, tx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider_subscription_id = ?`+db.ForUpdate(tx),
		providerSubscriptionID,
	)
}

func (r *repo) findOne(ctx context.Context, tx *gorm.DB, query string, args ...any) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	if err := tx.WithContext(ctx).Raw(query, args...).Scan(&subscription).Error; err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func (r *repo) ListByUserID(ctx context.Context, tx *gorm.DB, userID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	var items []subscriptiondomain.Subscription
	err := tx.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CountByUserID(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM subscriptions WHERE user_id = ?`,
		userID,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) ListForSweep(ctx context.Context, tx *gorm.DB, staleBefore, now time.Time, limit int) ([]subscriptiondomain.Subscription, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []subscriptiondomain.Subscription
	err := tx.WithContext(ctx).Raw(
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE `+openStatuses+`
		   AND (last_event_at IS NULL OR last_event_at < ? OR (period_end IS NOT NULL AND period_end < ?))
		 ORDER BY last_event_at ASC, id ASC
		 LIMIT ?`,
		staleBefore,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
