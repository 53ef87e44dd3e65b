package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Service links local users to provider customers and payment methods.
type Service interface {
	GetUser(ctx context.Context, id snowflake.ID) (User, error)
	// EnsureCustomer returns the user with a provider customer attached, adopting
	// an existing remote customer with the same email before creating one.
	EnsureCustomer(ctx context.Context, user User) (User, error)
	// AttachPaymentMethod attaches methodID to the user's customer and makes it the default.
	AttachPaymentMethod(ctx context.Context, user User, methodID string) (User, error)
}

var (
	ErrNotFound             = errors.New("user_not_found")
	ErrInvalidEmail         = errors.New("invalid_email")
	ErrInvalidPaymentMethod = errors.New("invalid_payment_method")
	ErrCustomerNotLinked    = errors.New("customer_not_linked")
	ErrPaymentMethodInUse   = errors.New("payment_method_in_use")
)
