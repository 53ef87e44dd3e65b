package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// tokenBucketScript refills KEYS[1] at ARGV[1] tokens/s up to ARGV[2] and
// takes one token. It replies {granted, tokens, now_ms, wait_ms}; tokens is
// a string because redis truncates lua numbers to integers.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = clock[1] * 1000 + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local last = tonumber(state[2]) or now
tokens = math.min(burst, tokens + math.max(0, now - last) * rate / 1000)

local granted = 0
local wait = 0
if tokens >= 1 then
  granted = 1
  tokens = tokens - 1
else
  wait = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)
return {granted, tostring(tokens), now, wait}
`

var (
	ErrNotConfigured = errors.New("rate limiter not configured")
	ErrInvalidBucket = errors.New("invalid rate limit bucket")
)

type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

// Decision is the outcome of taking one token.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (Decision, error) {
	if t == nil || t.client == nil {
		return Decision{}, ErrNotConfigured
	}
	if key == "" || rate <= 0 || burst <= 0 {
		return Decision{}, ErrInvalidBucket
	}

	ttl := defaultBucketTTL(rate, burst)
	res, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, ttl.Milliseconds()).Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(res) < 4 {
		return Decision{}, errors.New("invalid rate limit script response")
	}
	return decide(castToInt(res[0]) == 1, castToFloat(res[1]), castToInt(res[2]), castToInt(res[3]), burst), nil
}

// decide builds a Decision from the script reply. nowMillis is redis time.
func decide(allowed bool, remaining float64, nowMillis, waitMillis int64, burst int) Decision {
	var retryAfter time.Duration
	if !allowed && waitMillis > 0 {
		retryAfter = time.Duration(waitMillis) * time.Millisecond
	}
	return Decision{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  int(math.Floor(remaining)),
		ResetTime:  time.UnixMilli(nowMillis).Add(retryAfter),
		RetryAfter: retryAfter,
	}
}

func defaultBucketTTL(rate float64, burst int) time.Duration {
	if rate <= 0 || burst <= 0 {
		return time.Second
	}
	seconds := math.Ceil((float64(burst) / rate) * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func castToInt(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case int:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		parsed, _ := strconv.ParseInt(val, 10, 64)
		return parsed
	default:
		return 0
	}
}

func castToFloat(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	case string:
		parsed, _ := strconv.ParseFloat(val, 64)
		return parsed
	default:
		return 0
	}
}
