package sweeper

import (
	"context"

	obsmetrics "github.com/smallbiznis/subsync/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("sweeper",
	fx.Provide(provideMetrics),
	fx.Provide(New),
	fx.Invoke(Start),
)

func provideMetrics(cfg obsmetrics.Config) *obsmetrics.SweeperMetrics {
	return obsmetrics.SweeperWithConfig(cfg)
}

func Start(lc fx.Lifecycle, sweeper *Sweeper) {
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go sweeper.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}
