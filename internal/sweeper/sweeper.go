package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsync/internal/clock"
	"github.com/smallbiznis/subsync/internal/config"
	obsmetrics "github.com/smallbiznis/subsync/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobReconcile = "reconcile_sweep"

var ErrInvalidConfig = errors.New("invalid_sweeper_config")

type Params struct {
	fx.In

	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Engine  subscriptiondomain.Service
	Config  *config.ReconcileConfigHolder
	Metrics *obsmetrics.SweeperMetrics `optional:"true"`
}

// Sweeper periodically pulls provider state for subscriptions whose local
// view may have drifted, recovering from webhooks that never arrived.
type Sweeper struct {
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	engine  subscriptiondomain.Service
	holder  *config.ReconcileConfigHolder
	metrics *obsmetrics.SweeperMetrics
}

func New(p Params) (*Sweeper, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Engine == nil || p.Config == nil {
		return nil, ErrInvalidConfig
	}
	return &Sweeper{
		log:     p.Log.Named("sweeper").With(zap.String("component", "sweeper")),
		genID:   p.GenID,
		clock:   p.Clock,
		engine:  p.Engine,
		holder:  p.Config,
		metrics: p.Metrics,
	}, nil
}

func (s *Sweeper) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run := s.beginRun(ctx, name, batchSize)
	s.metrics.IncRun()

	err := fn(ctx)
	s.metrics.ObserveDuration(s.clock.Now().Sub(start))
	s.finishRun(ctx, run)
	if err == nil {
		return nil
	}

	s.metrics.IncError(err)
	// a deadline ends the batch early; the next tick picks up the rest
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.runLogger(ctx).Warn("sweep cut short",
			zap.Duration("timeout", timeout),
			zap.Int("visited", run.visited()),
			zap.Error(err),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs a single sweep if sweeping is enabled.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	cfg := s.holder.Get()
	if !cfg.SweepEnabled {
		return nil
	}
	return s.runJob(ctx, jobReconcile, cfg.SweepBatchSize, cfg.SweepInterval, s.ReconcileJob)
}

func (s *Sweeper) RunForever(ctx context.Context) {
	interval := s.holder.Get().SweepInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()
	nextRun := s.clock.Now().Add(interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if lag := s.clock.Now().Sub(nextRun); lag > 0 {
			s.metrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("sweep run failed", zap.Error(err))
		}

		// picks up interval changes from a config reload
		interval = s.holder.Get().SweepInterval
		nextRun = s.clock.Now().Add(interval)
		timer.Reset(interval)
	}
}

// ReconcileJob reconciles one batch of subscriptions. A failure on one
// subscription does not stop the batch.
func (s *Sweeper) ReconcileJob(ctx context.Context) error {
	run := currentRun(ctx)
	items, err := s.engine.ListForSweep(ctx, s.holder.Get().SweepBatchSize)
	if err != nil {
		return fmt.Errorf("list for sweep: %w", err)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := s.engine.ReconcileSubscription(ctx, item.ID)
		if err != nil {
			run.fail()
			s.metrics.IncError(err)
			s.logReconcileFailure(ctx, item, err)
			continue
		}
		run.record(result)
		s.metrics.IncReconciled(string(result))
		s.logReconciled(ctx, item, result)
	}
	return nil
}
