package lock

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/subsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(NewLocker),
)

// NewLocker picks the redis-backed locker when redis is enabled, otherwise the in-process one.
func NewLocker(lc fx.Lifecycle, cfg config.Config, holder *config.ReconcileConfigHolder, log *zap.Logger) (Locker, error) {
	log = log.Named("lock")
	if !cfg.Redis.Enabled {
		log.Info("using in-process locker")
		return NewKeyedMutex(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Info("using redis locker", zap.String("addr", cfg.Redis.Addr))
	return NewRedisLocker(client, func() time.Duration { return holder.Get().LockTTL }, log), nil
}
