package domain

import (
	"context"
	"errors"

	customerdomain "github.com/smallbiznis/subsync/internal/customer/domain"
	"github.com/smallbiznis/subsync/internal/lock"
	pricedomain "github.com/smallbiznis/subsync/internal/price/domain"
	productdomain "github.com/smallbiznis/subsync/internal/product/domain"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
)

var (
	ErrSubscriptionNotFound  = errors.New("subscription_not_found")
	ErrDuplicateSubscription = errors.New("duplicate_subscription")
	ErrSubscriptionPending   = errors.New("subscription_incomplete")
	ErrInvalidTransition     = errors.New("invalid_transition")
	ErrPriceUnchanged        = errors.New("price_unchanged")
	ErrRenewalWindowClosed   = errors.New("renewal_window_closed")
	ErrConcurrentUpdate      = errors.New("concurrent_update")
	ErrUnmatchedEvent        = errors.New("unmatched_subscription_event")
	ErrInvalidUser           = errors.New("invalid_user")
	ErrInvalidPrice          = errors.New("invalid_price")
	ErrInvalidPaymentMethod  = errors.New("invalid_payment_method")
	ErrInvalidEvent          = errors.New("invalid_event")
)

// ErrorKind is the caller-facing classification of an engine error.
type ErrorKind string

const (
	KindNone                ErrorKind = ""
	KindNotFound            ErrorKind = "not_found"
	KindConflict            ErrorKind = "conflict"
	KindProviderUnavailable ErrorKind = "provider_unavailable"
	KindSignatureInvalid    ErrorKind = "signature_invalid"
	KindInvalid             ErrorKind = "invalid"
	KindInternal            ErrorKind = "internal"
)

// Retryable reports whether the caller may retry the same request unchanged.
func (k ErrorKind) Retryable() bool {
	return k == KindProviderUnavailable
}

// KindOf classifies err. Unknown errors are Internal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrSubscriptionNotFound),
		errors.Is(err, customerdomain.ErrNotFound),
		errors.Is(err, pricedomain.ErrNotFound),
		errors.Is(err, productdomain.ErrNotFound),
		errors.Is(err, providerdomain.ErrRemoteNotFound),
		errors.Is(err, providerdomain.ErrUnknownProvider):
		return KindNotFound
	case errors.Is(err, ErrDuplicateSubscription),
		errors.Is(err, ErrSubscriptionPending),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrPriceUnchanged),
		errors.Is(err, ErrRenewalWindowClosed),
		errors.Is(err, ErrConcurrentUpdate),
		errors.Is(err, ErrUnmatchedEvent),
		errors.Is(err, customerdomain.ErrPaymentMethodInUse),
		errors.Is(err, lock.ErrLockTimeout):
		return KindConflict
	case errors.Is(err, providerdomain.ErrProviderUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return KindProviderUnavailable
	case errors.Is(err, providerdomain.ErrInvalidSignature):
		return KindSignatureInvalid
	case errors.Is(err, ErrInvalidUser),
		errors.Is(err, ErrInvalidPrice),
		errors.Is(err, ErrInvalidPaymentMethod),
		errors.Is(err, ErrInvalidEvent),
		errors.Is(err, providerdomain.ErrInvalidPayload),
		errors.Is(err, providerdomain.ErrProviderRejected),
		errors.Is(err, customerdomain.ErrInvalidEmail),
		errors.Is(err, customerdomain.ErrInvalidPaymentMethod),
		errors.Is(err, customerdomain.ErrCustomerNotLinked):
		return KindInvalid
	default:
		return KindInternal
	}
}
