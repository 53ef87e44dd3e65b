package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/subsync/internal/customer/domain"
	pricedomain "github.com/smallbiznis/subsync/internal/price/domain"
	productdomain "github.com/smallbiznis/subsync/internal/product/domain"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type      string            `json:"type"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrRateLimited     = errors.New("rate_limited")
	ErrPayloadTooLarge = errors.New("payload_too_large")
)

// retryAfterSeconds is advertised with provider outages.
const retryAfterSeconds = "5"

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		if payload.Retryable {
			c.Header("Retry-After", retryAfterSeconds)
		}
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "unauthorized"}
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	case errors.Is(err, ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, errorPayload{Type: "payload_too_large", Message: "request body too large"}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many requests"}
	case errors.Is(err, providerdomain.ErrProviderRejected):
		return http.StatusPaymentRequired, errorPayload{Type: "payment_rejected", Message: "payment provider rejected the request"}
	case errors.Is(err, productdomain.ErrDuplicateProduct):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: productdomain.ErrDuplicateProduct.Error()}
	case errors.Is(err, pricedomain.ErrDuplicatePrice):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: pricedomain.ErrDuplicatePrice.Error()}
	case isCatalogValidationError(err):
		return validationPayload(err)
	}

	switch subscriptiondomain.KindOf(err) {
	case subscriptiondomain.KindNotFound:
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}
	case subscriptiondomain.KindConflict:
		return http.StatusConflict, errorPayload{Type: "conflict", Message: conflictCode(err)}
	case subscriptiondomain.KindProviderUnavailable:
		return http.StatusServiceUnavailable, errorPayload{
			Type:      "provider_unavailable",
			Message:   "payment provider unavailable, retry later",
			Retryable: true,
		}
	case subscriptiondomain.KindSignatureInvalid:
		return http.StatusBadRequest, errorPayload{Type: "signature_invalid", Message: "invalid signature"}
	case subscriptiondomain.KindInvalid:
		return validationPayload(err)
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func validationPayload(err error) (int, errorPayload) {
	code := validationErrorCode(err)
	return http.StatusBadRequest, errorPayload{
		Type:    "validation_error",
		Message: "validation error",
		Errors: []ValidationError{
			{
				Field:   validationErrorField(code),
				Code:    code,
				Message: "invalid value",
			},
		},
	}
}

// classifyErrorForLog feeds the request logger's error_type and error_code fields.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError && !payload.Retryable {
		return "internal_error", "internal_error"
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, string(subscriptiondomain.KindOf(err))
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isCatalogValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, productdomain.ErrInvalidCode),
		errors.Is(err, productdomain.ErrInvalidName),
		errors.Is(err, productdomain.ErrInvalidProviderID),
		errors.Is(err, productdomain.ErrInvalidID),
		errors.Is(err, pricedomain.ErrInvalidProduct),
		errors.Is(err, pricedomain.ErrInvalidProviderID),
		errors.Is(err, pricedomain.ErrInvalidUnitAmount),
		errors.Is(err, pricedomain.ErrInvalidCurrency),
		errors.Is(err, pricedomain.ErrInvalidInterval),
		errors.Is(err, customerdomain.ErrInvalidEmail):
		return true
	default:
		return false
	}
}

func conflictCode(err error) string {
	for _, target := range []error{
		subscriptiondomain.ErrDuplicateSubscription,
		subscriptiondomain.ErrSubscriptionPending,
		subscriptiondomain.ErrInvalidTransition,
		subscriptiondomain.ErrPriceUnchanged,
		subscriptiondomain.ErrRenewalWindowClosed,
		subscriptiondomain.ErrConcurrentUpdate,
		subscriptiondomain.ErrUnmatchedEvent,
		customerdomain.ErrPaymentMethodInUse,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return "conflict"
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	for _, target := range []error{
		subscriptiondomain.ErrInvalidUser,
		subscriptiondomain.ErrInvalidPrice,
		subscriptiondomain.ErrInvalidPaymentMethod,
		subscriptiondomain.ErrInvalidEvent,
		providerdomain.ErrInvalidPayload,
		customerdomain.ErrInvalidPaymentMethod,
		customerdomain.ErrCustomerNotLinked,
	} {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	msg := err.Error()
	if idx := strings.Index(msg, ":"); idx > 0 {
		return msg[:idx]
	}
	return msg
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}
