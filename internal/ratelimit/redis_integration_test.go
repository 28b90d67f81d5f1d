//go:build integration

package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisLimiter(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	t.Run("concurrent hits never under-count", func(t *testing.T) {
		l := NewRedisLimiter(client, Config{Max: 10, Window: time.Minute})

		const hits = 100
		var wg sync.WaitGroup
		wg.Add(hits)
		for i := 0; i < hits; i++ {
			go func() {
				defer wg.Done()
				_, err := l.Hit(ctx, "login:concurrent")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		count, err := client.Get(ctx, keyPrefix+"login:concurrent").Int()
		require.NoError(t, err)
		assert.Equal(t, hits, count)

		limited, err := l.IsRateLimited(ctx, "login:concurrent")
		require.NoError(t, err)
		assert.True(t, limited)
	})

	t.Run("window expires", func(t *testing.T) {
		l := NewRedisLimiter(client, Config{Max: 1, Window: 300 * time.Millisecond})

		_, err := l.Hit(ctx, "login:expiry")
		require.NoError(t, err)
		res, err := l.Hit(ctx, "login:expiry")
		require.NoError(t, err)
		assert.True(t, res.Limited)
		assert.Greater(t, res.RetryAfter, time.Duration(0))

		require.Eventually(t, func() bool {
			limited, err := l.IsRateLimited(ctx, "login:expiry")
			return err == nil && !limited
		}, 2*time.Second, 50*time.Millisecond)
	})
}
