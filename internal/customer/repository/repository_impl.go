package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsync/internal/customer/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const userColumns = `id, email, name, provider_customer_id, default_payment_method_id, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *domain.User) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Name,
		user.ProviderCustomerID,
		user.DefaultPaymentMethodID,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	return r.findOne(ctx, db, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return r.findOne(ctx, db, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER(?)`, email)
}

func (r *repo) FindByProviderCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*domain.User, error) {
	return r.findOne(ctx, db, `SELECT `+userColumns+` FROM users WHERE provider_customer_id = ?`, customerID)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.User, error) {
	var user domain.User
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&user).Error; err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) LinkProviderCustomer(ctx context.Context, db *gorm.DB, id snowflake.ID, customerID string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE users SET provider_customer_id = ?, updated_at = ?
		 WHERE id = ? AND (provider_customer_id IS NULL OR provider_customer_id = '')`,
		customerID,
		time.Now().UTC(),
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SetDefaultPaymentMethod(ctx context.Context, db *gorm.DB, id snowflake.ID, methodID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET default_payment_method_id = ?, updated_at = ? WHERE id = ?`,
		methodID,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) FindPaymentMethod(ctx context.Context, db *gorm.DB, methodID string) (*domain.PaymentMethod, error) {
	var method domain.PaymentMethod
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider_customer_id, provider_payment_method_id, created_at
		 FROM payment_methods WHERE provider_payment_method_id = ?`,
		methodID,
	).Scan(&method).Error
	if err != nil {
		return nil, err
	}
	if method.ID == 0 {
		return nil, nil
	}
	return &method, nil
}

func (r *repo) InsertPaymentMethod(ctx context.Context, db *gorm.DB, method *domain.PaymentMethod) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_payment_method_id"}},
			DoNothing: true,
		}).
		Create(method)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
