package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsync/internal/price/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const priceColumns = `id, product_id, provider_price_id, unit_amount, currency, billing_interval, created_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, price *domain.Price) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO prices (`+priceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		price.ID,
		price.ProductID,
		price.ProviderPriceID,
		price.UnitAmount,
		price.Currency,
		price.Interval,
		price.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Price, error) {
	return r.findOne(ctx, db, `SELECT `+priceColumns+` FROM prices WHERE id = ?`, id)
}

func (r *repo) FindByProviderPriceID(ctx context.Context, db *gorm.DB, providerPriceID string) (*domain.Price, error) {
	return r.findOne(ctx, db, `SELECT `+priceColumns+` FROM prices WHERE provider_price_id = ?`, providerPriceID)
}

func (r *repo) FindDefaultForProduct(ctx context.Context, db *gorm.DB, productID snowflake.ID) (*domain.Price, error) {
	return r.findOne(ctx, db,
		`SELECT `+priceColumns+` FROM prices WHERE product_id = ? ORDER BY created_at ASC, id ASC LIMIT 1`,
		productID,
	)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Price, error) {
	var price domain.Price
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&price).Error; err != nil {
		return nil, err
	}
	if price.ID == 0 {
		return nil, nil
	}
	return &price, nil
}

func (r *repo) ListByProducts(ctx context.Context, db *gorm.DB, productIDs []snowflake.ID) ([]domain.Price, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}
	var items []domain.Price
	err := db.WithContext(ctx).Raw(
		`SELECT `+priceColumns+` FROM prices WHERE product_id IN ? ORDER BY product_id ASC, created_at ASC, id ASC`,
		productIDs,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
