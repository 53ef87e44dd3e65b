package ratelimit

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/subsync/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(provideUserActionLimiter),
)

// provideUserActionLimiter returns nil unless both redis and rate limiting are enabled.
func provideUserActionLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *UserActionLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil
	}
	if !cfg.Redis.Enabled {
		log.Warn("rate limiting requires redis, disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	log.Info("user action rate limit enabled",
		zap.Float64("rate", limitCfg.UserActionRate),
		zap.Int("burst", limitCfg.UserActionBurst),
	)
	return NewUserActionLimiter(NewTokenBucket(client), limitCfg.UserActionRate, limitCfg.UserActionBurst)
}
