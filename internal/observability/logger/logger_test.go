package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/subsync/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsOnlyPresentIDs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("bare")

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithUserID(ctx, "42")
	ctx = obscontext.WithEventID(ctx, "evt_1")
	WithProviderEvent(WithContext(ctx, base), "stripe", "invoice.payment_failed").Info("scoped")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].ContextMap())
	assert.Equal(t, map[string]interface{}{
		"request_id": "req-1",
		"user_id":    "42",
		"event_id":   "evt_1",
		"provider":   "stripe",
		"event_type": "invoice.payment_failed",
	}, entries[1].ContextMap())
}

func TestWithSubscriptionTrims(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	WithSubscription(zap.New(core), " 7 ", "sub_1 ").Info("x")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "7", fields["subscription_id"])
	assert.Equal(t, "sub_1", fields["provider_subscription_id"])
	assert.Nil(t, WithSubscription(nil, "1", "2"))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(fxtest.NewLifecycle(t), Config{Level: "loud"})
	assert.Error(t, err)

	log, err := New(fxtest.NewLifecycle(t), Config{Level: "warn", Debug: true})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
}
