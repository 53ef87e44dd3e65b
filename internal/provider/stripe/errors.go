package stripe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/smallbiznis/subsync/internal/provider/domain"
	stripego "github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

// fail classifies a Stripe SDK error into the gateway error set and records it.
func (g *Gateway) fail(ctx context.Context, op string, err error) error {
	classified, reason := classify(err)
	g.log.Warn("stripe call failed",
		zap.String("operation", op),
		zap.String("reason", reason),
		zap.Error(err),
	)
	if g.failures != nil {
		g.failures.RecordProviderFailure(ctx, op, reason)
	}
	return fmt.Errorf("%s: %w", op, classified)
}

func classify(err error) (error, string) {
	var stripeErr *stripego.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
			return domain.ErrProviderUnavailable, "rate_limited"
		case stripeErr.HTTPStatusCode >= http.StatusInternalServerError:
			return domain.ErrProviderUnavailable, "server_error"
		case stripeErr.Code == stripego.ErrorCodeResourceMissing,
			stripeErr.HTTPStatusCode == http.StatusNotFound:
			return domain.ErrRemoteNotFound, "resource_missing"
		default:
			return fmt.Errorf("%w: %s", domain.ErrProviderRejected, stripeErr.Msg), "rejected"
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrProviderUnavailable, "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return domain.ErrProviderUnavailable, "canceled"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.ErrProviderUnavailable, "network"
	}
	if errors.Is(err, domain.ErrRemoteNotFound) {
		return domain.ErrRemoteNotFound, "resource_missing"
	}
	return domain.ErrProviderUnavailable, "transport"
}
