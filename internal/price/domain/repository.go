package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, price *Price) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Price, error)
	FindByProviderPriceID(ctx context.Context, db *gorm.DB, providerPriceID string) (*Price, error)
	// FindDefaultForProduct returns the product's earliest price.
	FindDefaultForProduct(ctx context.Context, db *gorm.DB, productID snowflake.ID) (*Price, error)
	ListByProducts(ctx context.Context, db *gorm.DB, productIDs []snowflake.ID) ([]Price, error)
}
