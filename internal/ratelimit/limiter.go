// Package ratelimit implements fixed-window request counters keyed by caller-composed
// strings such as "login:203.0.113.7". The limiter knows nothing about actions.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidKey = errors.New("ratelimit: empty key")

// Config sets the window shape shared by every key of a limiter.
type Config struct {
	Max    int
	Window time.Duration
}

// Result describes the bucket after a Hit.
type Result struct {
	Limited    bool
	Count      int
	Remaining  int
	RetryAfter time.Duration // time until the window rolls over; zero when not limited
}

// Limiter is safe for concurrent use. Hit counts the request; it is limited when the
// count exceeds Max. IsRateLimited is read-only and reports whether the next Hit would
// be limited.
type Limiter interface {
	Hit(ctx context.Context, key string) (Result, error)
	IsRateLimited(ctx context.Context, key string) (bool, error)
}

func newResult(cfg Config, count int, ttl time.Duration) Result {
	res := Result{Count: count, Remaining: cfg.Max - count}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if count > cfg.Max {
		res.Limited = true
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = cfg.Window
		}
	}
	return res
}
