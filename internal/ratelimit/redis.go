package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "ratelimit:"

// INCR and the first-hit expiry run in one script so a crash between them cannot leave
// a counter without a TTL, and concurrent hits never lose an increment.
var hitScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return { count, ttl }
`)

// RedisLimiter shares buckets across API replicas.
type RedisLimiter struct {
	client redis.UniversalClient
	cfg    Config
}

func NewRedisLimiter(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg}
}

func (l *RedisLimiter) Hit(ctx context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrInvalidKey
	}

	vals, err := hitScript.Run(ctx, l.client, []string{keyPrefix + key}, l.cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit hit %q: %w", key, err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("ratelimit hit %q: unexpected script reply %v", key, vals)
	}

	return newResult(l.cfg, int(vals[0]), time.Duration(vals[1])*time.Millisecond), nil
}

func (l *RedisLimiter) IsRateLimited(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}

	count, err := l.client.Get(ctx, keyPrefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ratelimit check %q: %w", key, err)
	}
	return count >= l.cfg.Max, nil
}
