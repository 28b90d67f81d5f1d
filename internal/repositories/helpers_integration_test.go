//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/biasharahub/biashara/internal/database"
)

// testDB manages a PostgreSQL testcontainer with migrations applied.
type testDB struct {
	container testcontainers.Container
	pool      *pgxpool.Pool
	db        *database.DB
}

func setupTestDatabase(t *testing.T) *testDB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("biashara"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	db := database.NewFromPool(pool, nil)
	require.NoError(t, db.Migrate(ctx), "failed to run migrations")

	tdb := &testDB{container: container, pool: pool, db: db}
	t.Cleanup(func() {
		pool.Close()
		_ = container.Terminate(context.Background())
	})
	return tdb
}

// truncate empties every table for test isolation
func (tdb *testDB) truncate(t *testing.T) {
	t.Helper()
	tables := []string{"audit_logs", "revoked_sessions", "login_attempt_counters", "tenant_users", "tenants", "platform_users"}
	for _, table := range tables {
		_, err := tdb.pool.Exec(context.Background(), fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err, "failed to truncate %s", table)
	}
}
