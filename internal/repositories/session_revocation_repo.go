package repositories

import (
	"context"
	"time"

	"github.com/biasharahub/biashara/internal/database"
	"github.com/biasharahub/biashara/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRevocationRepository keeps revoked session ids until the token would have expired.
type SessionRevocationRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRevocationRepository(db *database.DB) *SessionRevocationRepository {
	return &SessionRevocationRepository{pool: db.Pool}
}

// Revoke blacklists a session id. Revoking the same id twice is a no-op.
func (r *SessionRevocationRepository) Revoke(ctx context.Context, jti string, realm models.Realm, userID string, expiresAt time.Time) error {
	query := `
		INSERT INTO revoked_sessions (jti, realm, user_id, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (jti) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, jti, string(realm), userID, expiresAt)
	return database.MapPostgresError(err)
}

func (r *SessionRevocationRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_sessions WHERE jti = $1)`, jti).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// CleanupExpired removes entries whose tokens can no longer validate anyway.
func (r *SessionRevocationRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM revoked_sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
