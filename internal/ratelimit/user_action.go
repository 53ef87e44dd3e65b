package ratelimit

import (
	"context"
	"fmt"
)

const keyUserAction = "subsync:ratelimit:user:%s"

// UserActionLimiter throttles subscription mutations per user.
type UserActionLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewUserActionLimiter(bucket *TokenBucket, rate float64, burst int) *UserActionLimiter {
	if bucket == nil || rate <= 0 || burst <= 0 {
		return nil
	}
	return &UserActionLimiter{bucket: bucket, rate: rate, burst: burst}
}

func (l *UserActionLimiter) Allow(ctx context.Context, userID string) (Decision, error) {
	if l == nil {
		return Decision{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyUserAction, userID), l.rate, l.burst)
}
