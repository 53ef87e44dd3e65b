package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *User) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*User, error)
	FindByProviderCustomerID(ctx context.Context, db *gorm.DB, customerID string) (*User, error)
	// LinkProviderCustomer sets the provider customer id only when none is set yet.
	LinkProviderCustomer(ctx context.Context, db *gorm.DB, id snowflake.ID, customerID string) (bool, error)
	SetDefaultPaymentMethod(ctx context.Context, db *gorm.DB, id snowflake.ID, methodID string) error

	FindPaymentMethod(ctx context.Context, db *gorm.DB, methodID string) (*PaymentMethod, error)
	InsertPaymentMethod(ctx context.Context, db *gorm.DB, method *PaymentMethod) (bool, error)
}
