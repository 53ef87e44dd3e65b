package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsync/internal/product/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const productColumns = `id, code, name, description, provider_product_id, created_at`

func (r *repo) Create(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.Code,
		product.Name,
		product.Description,
		product.ProviderProductID,
		product.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Product, error) {
	var product domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE id = ?`,
		id,
	).Scan(&product).Error
	if err != nil {
		return nil, err
	}
	if product.ID == 0 {
		return nil, nil
	}
	return &product, nil
}

func (r *repo) FindAll(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var products []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT ` + productColumns + ` FROM products ORDER BY created_at ASC, id ASC`,
	).Scan(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repo) FindByRefs(ctx context.Context, db *gorm.DB, ids []snowflake.ID, codes []string) ([]domain.Product, error) {
	if len(ids) == 0 && len(codes) == 0 {
		return nil, nil
	}
	// IN over an empty list is invalid SQL on some dialects.
	if ids == nil {
		ids = []snowflake.ID{0}
	}
	if codes == nil {
		codes = []string{""}
	}

	var products []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT `+productColumns+` FROM products WHERE id IN ? OR code IN ?`,
		ids,
		codes,
	).Scan(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}
