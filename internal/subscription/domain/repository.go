package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	// Update persists status fields when the stored version still matches
	// subscription.Version, then bumps the version. It returns
	// ErrConcurrentUpdate when the row moved underneath the caller.
	Update(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindOpenByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Subscription, error)
	FindOpenByUserIDForUpdate(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Subscription, error)
	FindByProviderID(ctx context.Context, db *gorm.DB, providerSubscriptionID string) (*Subscription, error)
	FindByProviderIDForUpdate(ctx context.Context, db *gorm.DB, providerSubscriptionID string) (*Subscription, error)
	ListByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Subscription, error)
	CountByUserID(ctx context.Context, db *gorm.DB, userID snowflake.ID) (int64, error)
	// ListForSweep returns non-terminal rows not observed since staleBefore or
	// whose period ended before now, oldest first.
	ListForSweep(ctx context.Context, db *gorm.DB, staleBefore, now time.Time, limit int) ([]Subscription, error)
}
