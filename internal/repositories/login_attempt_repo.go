package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/biasharahub/biashara/internal/database"
	"github.com/biasharahub/biashara/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoginAttemptRepository stores per-(realm, email) failure counters.
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

// NewLoginAttemptRepository creates a new LoginAttemptRepository
func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

func scanCounterRow(scanner rowScanner) (*models.LoginAttemptCounter, error) {
	var c models.LoginAttemptCounter
	var realm string
	if err := scanner.Scan(&realm, &c.Email, &c.FailedCount, &c.LockedUntil, &c.LastFailedAt); err != nil {
		return nil, database.MapPostgresError(err)
	}
	c.Realm = models.Realm(realm)
	return &c, nil
}

// Get returns the counter, or nil when no failure has been recorded.
func (r *LoginAttemptRepository) Get(ctx context.Context, realm models.Realm, email string) (*models.LoginAttemptCounter, error) {
	query := `
		SELECT realm, email, failed_count, locked_until, last_failed_at
		FROM login_attempt_counters WHERE realm = $1 AND email = $2
	`
	c, err := scanCounterRow(r.pool.QueryRow(ctx, query, string(realm), strings.ToLower(email)))
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get login attempt counter: %w", err)
	}
	return c, nil
}

// RecordFailure atomically increments the counter and sets the lock once the count
// reaches threshold. A counter whose lock has expired, or whose last failure is older
// than the lock window, restarts at one. The returned counter reflects the row after
// the update, so concurrent failures each observe a distinct count.
func (r *LoginAttemptRepository) RecordFailure(ctx context.Context, realm models.Realm, email string, threshold int, lockFor time.Duration) (*models.LoginAttemptCounter, error) {
	query := `
		INSERT INTO login_attempt_counters AS c (realm, email, failed_count, locked_until, last_failed_at)
		VALUES ($1, $2, 1,
		        CASE WHEN 1 >= $3::int THEN NOW() + make_interval(secs => $4::float8) END,
		        NOW())
		ON CONFLICT (realm, email) DO UPDATE SET
			failed_count = CASE
				WHEN (c.locked_until IS NOT NULL AND c.locked_until <= NOW())
				  OR c.last_failed_at < NOW() - make_interval(secs => $4::float8) THEN 1
				ELSE c.failed_count + 1
			END,
			locked_until = CASE
				WHEN c.locked_until > NOW() THEN c.locked_until
				WHEN (CASE
						WHEN (c.locked_until IS NOT NULL AND c.locked_until <= NOW())
						  OR c.last_failed_at < NOW() - make_interval(secs => $4::float8) THEN 1
						ELSE c.failed_count + 1
					  END) >= $3::int THEN NOW() + make_interval(secs => $4::float8)
				ELSE NULL
			END,
			last_failed_at = NOW()
		RETURNING realm, email, failed_count, locked_until, last_failed_at
	`
	c, err := scanCounterRow(r.pool.QueryRow(ctx, query,
		string(realm), strings.ToLower(email), threshold, lockFor.Seconds(),
	))
	if err != nil {
		return nil, fmt.Errorf("record login failure: %w", err)
	}
	return c, nil
}

// Reset clears the counter after a successful login.
func (r *LoginAttemptRepository) Reset(ctx context.Context, realm models.Realm, email string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM login_attempt_counters WHERE realm = $1 AND email = $2`,
		string(realm), strings.ToLower(email))
	if err != nil {
		return fmt.Errorf("reset login attempt counter: %w", database.MapPostgresError(err))
	}
	return nil
}

// DeleteStale removes unlocked counters whose last failure is older than maxAge.
func (r *LoginAttemptRepository) DeleteStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	query := `
		DELETE FROM login_attempt_counters
		WHERE (locked_until IS NULL OR locked_until < NOW())
		  AND last_failed_at < NOW() - make_interval(secs => $1::float8)
	`
	result, err := r.pool.Exec(ctx, query, maxAge.Seconds())
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
