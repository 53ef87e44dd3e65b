package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const lockExtendScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`

// RedisLocker spans processes. A local KeyedMutex in front of it keeps
// goroutines of the same process from polling redis against each other.
// While a lock is held its lease is renewed every third of the TTL, so a
// holder blocked on slow provider calls does not lose it.
type RedisLocker struct {
	client       *redis.Client
	script       *redis.Script
	extendScript *redis.Script
	local        *KeyedMutex
	ttl          func() time.Duration
	pollInterval time.Duration
	log          *zap.Logger

	// extend renews key's lease if token still owns it.
	extend func(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
}

func NewRedisLocker(client *redis.Client, ttl func() time.Duration, log *zap.Logger) *RedisLocker {
	if client == nil {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &RedisLocker{
		client:       client,
		script:       redis.NewScript(lockReleaseScript),
		extendScript: redis.NewScript(lockExtendScript),
		local:        NewKeyedMutex(),
		ttl:          ttl,
		pollInterval: 50 * time.Millisecond,
		log:          log,
	}
	l.extend = l.Extend
	return l
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	ttl := l.ttl()
	for {
		token, ok, err := l.TryLock(ctx, key, ttl)
		if err != nil {
			unlockLocal()
			return nil, err
		}
		if ok {
			stop := l.keepAlive(key, token, ttl)
			var once sync.Once
			return func() {
				once.Do(func() {
					stop()
					releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
					defer cancel()
					_ = l.Release(releaseCtx, key, token)
					unlockLocal()
				})
			}, nil
		}

		select {
		case <-ctx.Done():
			unlockLocal()
			return nil, ErrLockTimeout
		case <-time.After(l.pollInterval):
		}
	}
}

// keepAlive renews the lease until the returned stop func is called or the
// lease is found lost. stop waits for the renewal goroutine to exit.
func (l *RedisLocker) keepAlive(key, token string, ttl time.Duration) (stop func()) {
	interval := ttl / 3
	if interval <= 0 || l.extend == nil {
		return func() {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			reqCtx, reqCancel := context.WithTimeout(ctx, interval)
			ok, err := l.extend(reqCtx, key, token, ttl)
			reqCancel()
			switch {
			case err != nil && ctx.Err() == nil:
				l.log.Warn("lock renewal failed", zap.String("key", key), zap.Error(err))
			case err == nil && !ok:
				l.log.Warn("lock lost before release", zap.String("key", key))
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// Extend renews key's lease to ttl when token still holds it.
func (l *RedisLocker) Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	if l == nil || l.client == nil {
		return false, errors.New("lock client not configured")
	}
	n, err := l.extendScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, ErrEmptyKey
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
