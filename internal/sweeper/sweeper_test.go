package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/subsync/internal/clock"
	"github.com/smallbiznis/subsync/internal/config"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"github.com/smallbiznis/subsync/internal/subscription/domain/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestSweeper(t *testing.T, engine subscriptiondomain.Service, cfg config.ReconcileConfig) *Sweeper {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	s, err := New(Params{
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clock.NewFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)),
		Engine: engine,
		Config: config.NewStaticReconcileConfigHolder(cfg),
	})
	require.NoError(t, err)
	return s
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRunOnceReconcilesBatchAndSkipsFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockService(ctrl)
	cfg := config.DefaultReconcileConfig()
	cfg.SweepBatchSize = 10
	s := newTestSweeper(t, engine, cfg)

	items := []subscriptiondomain.Subscription{
		{ID: 1, ProviderSubscriptionID: "sub_1"},
		{ID: 2, ProviderSubscriptionID: "sub_2"},
		{ID: 3, ProviderSubscriptionID: "sub_3"},
	}
	gomock.InOrder(
		engine.EXPECT().ListForSweep(gomock.Any(), 10).Return(items, nil),
		engine.EXPECT().ReconcileSubscription(gomock.Any(), snowflake.ID(1)).Return(subscriptiondomain.ReconcileUpdated, nil),
		engine.EXPECT().ReconcileSubscription(gomock.Any(), snowflake.ID(2)).Return(subscriptiondomain.ReconcileResult(""), providerdomain.ErrProviderUnavailable),
		engine.EXPECT().ReconcileSubscription(gomock.Any(), snowflake.ID(3)).Return(subscriptiondomain.ReconcileMissing, nil),
	)

	require.NoError(t, s.RunOnce(context.Background()))
}

func TestRunOnceLogsSummary(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockService(ctrl)
	cfg := config.DefaultReconcileConfig()
	cfg.SweepBatchSize = 5
	s := newTestSweeper(t, engine, cfg)
	core, logs := observer.New(zapcore.DebugLevel)
	s.log = zap.New(core)

	items := []subscriptiondomain.Subscription{
		{ID: 1, ProviderSubscriptionID: "sub_1", Status: subscriptiondomain.StatusActive},
		{ID: 2, ProviderSubscriptionID: "sub_2"},
		{ID: 3, ProviderSubscriptionID: "sub_3"},
	}
	engine.EXPECT().ListForSweep(gomock.Any(), 5).Return(items, nil)
	engine.EXPECT().ReconcileSubscription(gomock.Any(), snowflake.ID(1)).Return(subscriptiondomain.ReconcileUpdated, nil)
	engine.EXPECT().ReconcileSubscription(gomock.Any(), snowflake.ID(2)).Return(subscriptiondomain.ReconcileUnchanged, nil)
	engine.EXPECT().ReconcileSubscription(gomock.Any(), snowflake.ID(3)).Return(subscriptiondomain.ReconcileResult(""), providerdomain.ErrProviderUnavailable)

	require.NoError(t, s.RunOnce(context.Background()))

	require.Equal(t, 1, logs.FilterMessage("subscription reconciled").Len())
	failed := logs.FilterMessage("subscription reconcile failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, true, failed[0].ContextMap()["retryable"])
	assert.Equal(t, "sub_3", failed[0].ContextMap()["provider_subscription_id"])

	summary := logs.FilterMessage("sweep finished with failures").All()
	require.Len(t, summary, 1)
	fields := summary[0].ContextMap()
	assert.Equal(t, zapcore.WarnLevel, summary[0].Level)
	assert.EqualValues(t, 3, fields["visited"])
	assert.EqualValues(t, 1, fields["updated"])
	assert.EqualValues(t, 1, fields["unchanged"])
	assert.EqualValues(t, 1, fields["failed"])
	assert.Equal(t, jobReconcile, fields["job"])
	assert.NotEmpty(t, fields["run_id"])
}

func TestRunOnceQuietWhenNothingChanged(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockService(ctrl)
	s := newTestSweeper(t, engine, config.DefaultReconcileConfig())
	core, logs := observer.New(zapcore.InfoLevel)
	s.log = zap.New(core)

	engine.EXPECT().ListForSweep(gomock.Any(), gomock.Any()).Return([]subscriptiondomain.Subscription{{ID: 9}}, nil)
	engine.EXPECT().ReconcileSubscription(gomock.Any(), snowflake.ID(9)).Return(subscriptiondomain.ReconcileUnchanged, nil)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Zero(t, logs.Len())
}

func TestRunOnceReportsListFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockService(ctrl)
	s := newTestSweeper(t, engine, config.DefaultReconcileConfig())

	engine.EXPECT().ListForSweep(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), jobReconcile)
}

func TestRunOnceDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockService(ctrl)
	cfg := config.DefaultReconcileConfig()
	cfg.SweepEnabled = false
	s := newTestSweeper(t, engine, cfg)

	require.NoError(t, s.RunOnce(context.Background()))
}

func TestRunJobTimeoutIsSoft(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := newTestSweeper(t, mocks.NewMockService(ctrl), config.DefaultReconcileConfig())

	err := s.runJob(context.Background(), "timeout_job", 1, 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.NoError(t, err)
}

func TestReconcileJobStopsWhenContextEnds(t *testing.T) {
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockService(ctrl)
	s := newTestSweeper(t, engine, config.DefaultReconcileConfig())

	ctx, cancel := context.WithCancel(context.Background())
	engine.EXPECT().ListForSweep(gomock.Any(), gomock.Any()).
		Return([]subscriptiondomain.Subscription{{ID: 1}, {ID: 2}}, nil)
	engine.EXPECT().ReconcileSubscription(gomock.Any(), snowflake.ID(1)).
		DoAndReturn(func(context.Context, snowflake.ID) (subscriptiondomain.ReconcileResult, error) {
			cancel()
			return subscriptiondomain.ReconcileUnchanged, nil
		})

	err := s.ReconcileJob(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
