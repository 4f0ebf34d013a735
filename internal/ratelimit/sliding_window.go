package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// RedisSlidingWindow counts requests per subject in a rolling window
// backed by a Redis sorted set. State lives in Redis so every proxy
// replica shares one budget.
type RedisSlidingWindow struct {
	client    redis.UniversalClient
	limit     int64
	window    time.Duration
	keyPrefix string
	now       func() time.Time
	script    *redis.Script
}

func NewRedisSlidingWindow(client redis.UniversalClient, limit int, window time.Duration, keyPrefix string) (*RedisSlidingWindow, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}
	if strings.TrimSpace(keyPrefix) == "" {
		keyPrefix = "pixelgate:ratelimit"
	}

	return &RedisSlidingWindow{
		client:    client,
		limit:     int64(limit),
		window:    window,
		keyPrefix: keyPrefix,
		now:       time.Now,
		script: redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])
local member = ARGV[4]

redis.call("ZREMRANGEBYSCORE", key, 0, now_ms - window_ms)
local count = redis.call("ZCARD", key)

if count < limit then
  redis.call("ZADD", key, now_ms, member)
  redis.call("PEXPIRE", key, window_ms)
  return {1, limit - count - 1, 0}
end

local oldest = redis.call("ZRANGE", key, 0, 0, "WITHSCORES")
local retry_after_ms = 0
if oldest[2] ~= nil then
  retry_after_ms = math.max(1, tonumber(oldest[2]) + window_ms - now_ms)
end
return {0, 0, retry_after_ms}
`),
	}, nil
}

func (l *RedisSlidingWindow) Allow(ctx context.Context, subject string) (Decision, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}

	now := l.now().UTC()
	key := l.keyPrefix + ":" + subject
	member := strconv.FormatInt(now.UnixNano(), 10)

	raw, err := l.script.Run(
		ctx,
		l.client,
		[]string{key},
		l.limit,
		l.window.Milliseconds(),
		now.UnixMilli(),
		member,
	).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("run sliding window script: %w", err)
	}

	values, ok := raw.([]any)
	if !ok || len(values) != 3 {
		return Decision{}, fmt.Errorf("invalid sliding window response")
	}

	allowed, err := toInt64(values[0])
	if err != nil {
		return Decision{}, fmt.Errorf("parse allow value: %w", err)
	}
	remaining, err := toInt64(values[1])
	if err != nil {
		return Decision{}, fmt.Errorf("parse remaining value: %w", err)
	}
	retryAfterMS, err := toInt64(values[2])
	if err != nil {
		return Decision{}, fmt.Errorf("parse retry-after value: %w", err)
	}

	return Decision{
		Allowed:    allowed == 1,
		Remaining:  remaining,
		RetryAfter: time.Duration(retryAfterMS) * time.Millisecond,
	}, nil
}

func toInt64(in any) (int64, error) {
	switch v := in.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", in)
	}
}
