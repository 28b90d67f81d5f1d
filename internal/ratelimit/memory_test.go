package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestLimiter(max int, window time.Duration) (*MemoryLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(Config{Max: max, Window: window})
	l.now = clock.Now
	return l, clock
}

func TestMemoryLimiter_LimitsAfterMax(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := l.Hit(ctx, "login:1.2.3.4")
		require.NoError(t, err)
		assert.False(t, res.Limited, "hit %d", i)
		assert.Equal(t, 3-i, res.Remaining)
	}

	limited, err := l.IsRateLimited(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, limited)

	res, err := l.Hit(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, res.Limited)
	assert.Equal(t, time.Minute, res.RetryAfter)
}

func TestMemoryLimiter_WindowRollsOver(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	_, _ = l.Hit(ctx, "k")
	res, _ := l.Hit(ctx, "k")
	require.True(t, res.Limited)

	clock.Advance(61 * time.Second)

	limited, err := l.IsRateLimited(ctx, "k")
	require.NoError(t, err)
	assert.False(t, limited)

	res, _ = l.Hit(ctx, "k")
	assert.False(t, res.Limited)
	assert.Equal(t, 1, res.Count)
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)
	ctx := context.Background()

	_, _ = l.Hit(ctx, "login:a")
	res, _ := l.Hit(ctx, "login:b")
	assert.False(t, res.Limited)
}

func TestMemoryLimiter_ConcurrentHitsAreAllCounted(t *testing.T) {
	l, _ := newTestLimiter(1000, time.Minute)
	ctx := context.Background()

	const workers = 50
	const perWorker = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := l.Hit(ctx, "shared")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	res, err := l.Hit(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker+1, res.Count)
	assert.True(t, res.Limited)
}

func TestMemoryLimiter_Sweep(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)
	ctx := context.Background()

	_, _ = l.Hit(ctx, "a")
	clock.Advance(30 * time.Second)
	_, _ = l.Hit(ctx, "b")
	clock.Advance(31 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 0, l.Sweep())
}

func TestMemoryLimiter_RejectsEmptyKey(t *testing.T) {
	l, _ := newTestLimiter(5, time.Minute)
	_, err := l.Hit(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
