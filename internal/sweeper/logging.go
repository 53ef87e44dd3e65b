package sweeper

import (
	"context"
	"time"

	obslogger "github.com/smallbiznis/subsync/internal/observability/logger"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"go.uber.org/zap"
)

// sweepRun tallies one pass over a batch.
type sweepRun struct {
	id        string
	job       string
	limit     int
	startedAt time.Time

	outcomes map[subscriptiondomain.ReconcileResult]int
	failed   int
}

type sweepRunKey struct{}

func (r *sweepRun) record(result subscriptiondomain.ReconcileResult) {
	if r == nil {
		return
	}
	r.outcomes[result]++
}

func (r *sweepRun) fail() {
	if r == nil {
		return
	}
	r.failed++
}

func (r *sweepRun) visited() int {
	if r == nil {
		return 0
	}
	total := r.failed
	for _, n := range r.outcomes {
		total += n
	}
	return total
}

func (s *Sweeper) beginRun(ctx context.Context, job string, limit int) (context.Context, *sweepRun) {
	run := &sweepRun{
		id:        s.genID.Generate().String(),
		job:       job,
		limit:     limit,
		startedAt: s.clock.Now(),
		outcomes:  make(map[subscriptiondomain.ReconcileResult]int, 3),
	}
	log := obslogger.WithContext(ctx, s.log).With(zap.String("job", job), zap.String("run_id", run.id))
	log.Debug("sweep started", zap.Int("limit", limit))
	return context.WithValue(ctx, sweepRunKey{}, run), run
}

func currentRun(ctx context.Context) *sweepRun {
	run, _ := ctx.Value(sweepRunKey{}).(*sweepRun)
	return run
}

// runLogger carries the run id when ctx belongs to a sweep.
func (s *Sweeper) runLogger(ctx context.Context) *zap.Logger {
	log := obslogger.WithContext(ctx, s.log)
	if run := currentRun(ctx); run != nil {
		log = log.With(zap.String("job", run.job), zap.String("run_id", run.id))
	}
	return log
}

// finishRun logs the summary. A batch that touched nothing stays at debug.
func (s *Sweeper) finishRun(ctx context.Context, run *sweepRun) {
	fields := []zap.Field{
		zap.Duration("elapsed", s.clock.Now().Sub(run.startedAt)),
		zap.Int("visited", run.visited()),
		zap.Int("updated", run.outcomes[subscriptiondomain.ReconcileUpdated]),
		zap.Int("missing", run.outcomes[subscriptiondomain.ReconcileMissing]),
		zap.Int("unchanged", run.outcomes[subscriptiondomain.ReconcileUnchanged]),
		zap.Int("failed", run.failed),
	}
	log := s.runLogger(ctx)
	switch {
	case run.failed > 0:
		log.Warn("sweep finished with failures", fields...)
	case run.outcomes[subscriptiondomain.ReconcileUpdated] > 0 || run.outcomes[subscriptiondomain.ReconcileMissing] > 0:
		log.Info("sweep finished", fields...)
	default:
		log.Debug("sweep finished", fields...)
	}
}

func (s *Sweeper) logReconciled(ctx context.Context, sub subscriptiondomain.Subscription, result subscriptiondomain.ReconcileResult) {
	if result == subscriptiondomain.ReconcileUnchanged {
		return
	}
	obslogger.WithSubscription(s.runLogger(ctx), sub.ID.String(), sub.ProviderSubscriptionID).
		Info("subscription reconciled",
			zap.String("result", string(result)),
			zap.String("status", string(sub.Status)),
		)
}

func (s *Sweeper) logReconcileFailure(ctx context.Context, sub subscriptiondomain.Subscription, err error) {
	kind := subscriptiondomain.KindOf(err)
	obslogger.WithSubscription(s.runLogger(ctx), sub.ID.String(), sub.ProviderSubscriptionID).
		Warn("subscription reconcile failed",
			zap.String("kind", string(kind)),
			zap.Bool("retryable", kind.Retryable()),
			zap.Error(err),
		)
}
