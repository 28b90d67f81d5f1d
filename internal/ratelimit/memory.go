package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count     int
	expiresAt time.Time
}

// MemoryLimiter keeps buckets in process. Used in development and tests, and when
// REDIS_ADDR is unset on a single replica.
type MemoryLimiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*window
	now     func() time.Time
}

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:     cfg,
		buckets: make(map[string]*window),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Hit(_ context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrInvalidKey
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.buckets[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(l.cfg.Window)}
		l.buckets[key] = w
	}
	w.count++

	return newResult(l.cfg, w.count, w.expiresAt.Sub(now)), nil
}

func (l *MemoryLimiter) IsRateLimited(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.buckets[key]
	if !ok || !l.now().Before(w.expiresAt) {
		return false, nil
	}
	return w.count >= l.cfg.Max, nil
}

// Sweep drops expired buckets and returns how many were removed.
func (l *MemoryLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, w := range l.buckets {
		if !now.Before(w.expiresAt) {
			delete(l.buckets, k)
			removed++
		}
	}
	return removed
}
