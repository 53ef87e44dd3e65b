package metricspush

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/subsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("metrics.push",
	fx.Provide(NewPusher),
	fx.Invoke(start),
)

func start(lc fx.Lifecycle, cfg config.Config, pusher Pusher, log *zap.Logger) {
	if pusher == nil {
		return
	}
	log = log.Named("metrics.push")
	interval := cfg.MetricsPush.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("starting metrics push", zap.Duration("interval", interval))
			go func() {
				defer close(done)
				Run(ctx, pusher, prometheus.DefaultGatherer, interval, log)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			<-done
			// flush the last sweep
			if err := pusher.Push(stopCtx, prometheus.DefaultGatherer); err != nil {
				log.Warn("final metrics push failed", zap.Error(err))
			}
			return nil
		},
	})
}

// Run pushes on every tick until ctx is done.
func Run(ctx context.Context, pusher Pusher, gatherer prometheus.Gatherer, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := pusher.Push(ctx, gatherer); err != nil && ctx.Err() == nil {
				log.Warn("metrics push failed", zap.Error(err))
			}
		}
	}
}
