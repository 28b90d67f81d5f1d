//go:build integration

package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biasharahub/biashara/internal/models"
	"github.com/biasharahub/biashara/pkg/auth"
)

func TestRepositories(t *testing.T) {
	tdb := setupTestDatabase(t)

	t.Run("login counter increments are atomic under concurrency", func(t *testing.T) {
		tdb.truncate(t)
		repo := NewLoginAttemptRepository(tdb.db)
		ctx := context.Background()

		const workers = 25
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				_, err := repo.RecordFailure(ctx, models.RealmPlatform, "race@example.com", 1000, 30*time.Minute)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		counter, err := repo.Get(ctx, models.RealmPlatform, "race@example.com")
		require.NoError(t, err)
		require.NotNil(t, counter)
		assert.Equal(t, workers, counter.FailedCount)
		assert.Nil(t, counter.LockedUntil)
	})

	t.Run("counter locks exactly at threshold", func(t *testing.T) {
		tdb.truncate(t)
		repo := NewLoginAttemptRepository(tdb.db)
		ctx := context.Background()

		var last *models.LoginAttemptCounter
		for i := 1; i <= 5; i++ {
			c, err := repo.RecordFailure(ctx, models.RealmPlatform, "Owner@Platform.com", 5, 30*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, i, c.FailedCount)
			if i < 5 {
				assert.Nil(t, c.LockedUntil)
			}
			last = c
		}

		require.NotNil(t, last.LockedUntil)
		assert.WithinDuration(t, time.Now().Add(30*time.Minute), *last.LockedUntil, time.Minute)
		assert.True(t, last.IsLocked(time.Now()))

		// realms are independent
		other, err := repo.Get(ctx, models.RealmTenant, "owner@platform.com")
		require.NoError(t, err)
		assert.Nil(t, other)

		require.NoError(t, repo.Reset(ctx, models.RealmPlatform, "owner@platform.com"))
		cleared, err := repo.Get(ctx, models.RealmPlatform, "owner@platform.com")
		require.NoError(t, err)
		assert.Nil(t, cleared)
	})

	t.Run("tenant and owner are created together", func(t *testing.T) {
		tdb.truncate(t)
		tenants := NewTenantRepository(tdb.db)
		users := NewTenantUserRepository(tdb.db)
		ctx := context.Background()

		hash, err := auth.HashPasswordWithCost("Sup3r-Secret!", 4)
		require.NoError(t, err)

		trialEnds := time.Now().Add(14 * 24 * time.Hour)
		tenant, owner, err := tenants.CreateWithOwner(ctx,
			&models.Tenant{Subdomain: "acme", BusinessName: "Acme Hardware", Status: models.TenantStatusTrial, TrialEndsAt: &trialEnds, Services: []string{"cement", "nails"}},
			&models.TenantUser{Email: "Wanjiru@Acme.co.ke", FullName: "Wanjiru", PasswordHash: hash, Role: models.TenantRoleOwner, Active: true},
		)
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, owner.TenantID)
		assert.Equal(t, "acme", owner.Subdomain)
		assert.Equal(t, []string{"cement", "nails"}, tenant.Services)

		found, err := users.GetByEmail(ctx, tenant.ID, "wanjiru@acme.co.ke")
		require.NoError(t, err)
		assert.Equal(t, owner.ID, found.ID)
		assert.Equal(t, "acme", found.Subdomain)

		_, _, err = tenants.CreateWithOwner(ctx,
			&models.Tenant{Subdomain: "acme", BusinessName: "Other", Status: models.TenantStatusTrial},
			&models.TenantUser{Email: "x@y.com", PasswordHash: hash, Role: models.TenantRoleOwner, Active: true},
		)
		assert.ErrorIs(t, err, models.ErrConflict)

		updated, err := tenants.UpdateStatus(ctx, tenant.ID, models.TenantStatusSuspended)
		require.NoError(t, err)
		assert.Equal(t, models.TenantStatusSuspended, updated.Status)
		assert.False(t, updated.AllowsSessions(time.Now()))
	})

	t.Run("unknown tenant maps to not found", func(t *testing.T) {
		tdb.truncate(t)
		_, err := NewTenantRepository(tdb.db).GetBySubdomain(context.Background(), "nobody")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("session revocation is idempotent", func(t *testing.T) {
		tdb.truncate(t)
		repo := NewSessionRevocationRepository(tdb.db)
		ctx := context.Background()
		jti := uuid.NewString()

		require.NoError(t, repo.Revoke(ctx, jti, models.RealmTenant, "user-1", time.Now().Add(time.Hour)))
		require.NoError(t, repo.Revoke(ctx, jti, models.RealmTenant, "user-1", time.Now().Add(time.Hour)))

		revoked, err := repo.IsRevoked(ctx, jti)
		require.NoError(t, err)
		assert.True(t, revoked)

		require.NoError(t, repo.Revoke(ctx, uuid.NewString(), models.RealmTenant, "user-1", time.Now().Add(-time.Minute)))
		removed, err := repo.CleanupExpired(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), removed)
	})

	t.Run("audit rows keep the event payload", func(t *testing.T) {
		tdb.truncate(t)
		repo := NewAuditLogRepository(tdb.db)
		ctx := context.Background()
		tenantID := uuid.NewString()

		row, err := models.NewAuditLog(models.LoggedOut{Realm: models.RealmTenant, UserID: "u-1", TenantID: tenantID, SessionID: "s-1"}, time.Now())
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, row))

		logs, err := repo.ListByTenant(ctx, tenantID, 10)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, models.AuditKindLoggedOut, logs[0].EventType)
		assert.JSONEq(t, `{"realm":"tenant","user_id":"u-1","tenant_id":"`+tenantID+`","session_id":"s-1"}`, string(logs[0].Payload))
	})
}
