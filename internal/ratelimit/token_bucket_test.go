package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideAllowed(t *testing.T) {
	d := decide(true, 3.5, 1_700_000_000_000, 0, 5)
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining)
	assert.Equal(t, 5, d.Limit)
	assert.Zero(t, d.RetryAfter)
}

func TestDecideRejectedUsesServerWait(t *testing.T) {
	d := decide(false, 0.25, 1_700_000_000_000, 1500, 5)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1500*time.Millisecond, d.RetryAfter)
	assert.Equal(t, time.UnixMilli(1_700_000_000_000).Add(1500*time.Millisecond), d.ResetTime)
}

func TestDefaultBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, defaultBucketTTL(1, 5))
	assert.Equal(t, time.Second, defaultBucketTTL(100, 1))
	assert.Equal(t, time.Second, defaultBucketTTL(0, 1))
}

func TestCastsAcceptRedisReplyShapes(t *testing.T) {
	assert.Equal(t, int64(1), castToInt(int64(1)))
	assert.Equal(t, int64(42), castToInt("42"))
	assert.InDelta(t, 2.75, castToFloat("2.75"), 1e-9)
	assert.InDelta(t, 2.0, castToFloat(int64(2)), 1e-9)
	assert.Zero(t, castToFloat(nil))
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *UserActionLimiter
	d, err := l.Allow(context.Background(), "1001")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	assert.Nil(t, NewUserActionLimiter(nil, 1, 5))
}

func TestUnconfiguredBucket(t *testing.T) {
	var b *TokenBucket
	_, err := b.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
