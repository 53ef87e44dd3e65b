package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is owned by the identity subsystem; this package only reads it and
// maintains the provider link fields.
type User struct {
	ID                     snowflake.ID `gorm:"primaryKey"`
	Email                  string       `gorm:"not null"`
	Name                   string
	ProviderCustomerID     *string
	DefaultPaymentMethodID *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (User) TableName() string { return "users" }

func (u User) CustomerID() string {
	if u.ProviderCustomerID == nil {
		return ""
	}
	return strings.TrimSpace(*u.ProviderCustomerID)
}

func (u User) DefaultPaymentMethod() string {
	if u.DefaultPaymentMethodID == nil {
		return ""
	}
	return *u.DefaultPaymentMethodID
}

// PaymentMethod records a payment method known to be attached to a provider customer.
type PaymentMethod struct {
	ID                      snowflake.ID `gorm:"primaryKey"`
	ProviderCustomerID      string       `gorm:"not null"`
	ProviderPaymentMethodID string       `gorm:"not null;uniqueIndex"`
	CreatedAt               time.Time
}

func (PaymentMethod) TableName() string { return "payment_methods" }
