package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/biasharahub/biashara/internal/database"
	"github.com/biasharahub/biashara/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const platformUserColumns = `id, email, full_name, password_hash, role, is_active, last_login_at, created_at, updated_at`

type PlatformUserRepository struct {
	pool *pgxpool.Pool
}

func NewPlatformUserRepository(db *database.DB) *PlatformUserRepository {
	return &PlatformUserRepository{pool: db.Pool}
}

func scanPlatformUserRow(scanner rowScanner) (*models.PlatformUser, error) {
	var u models.PlatformUser
	err := scanner.Scan(
		&u.ID, &u.Email, &u.FullName, &u.PasswordHash, &u.Role, &u.Active,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &u, nil
}

// GetByEmail looks up a platform user by case-insensitive email.
func (r *PlatformUserRepository) GetByEmail(ctx context.Context, email string) (*models.PlatformUser, error) {
	query := `SELECT ` + platformUserColumns + ` FROM platform_users WHERE email = $1`
	return scanPlatformUserRow(r.pool.QueryRow(ctx, query, strings.ToLower(email)))
}

func (r *PlatformUserRepository) GetByID(ctx context.Context, id string) (*models.PlatformUser, error) {
	query := `SELECT ` + platformUserColumns + ` FROM platform_users WHERE id = $1`
	return scanPlatformUserRow(r.pool.QueryRow(ctx, query, id))
}

// Create inserts a platform user; the id and timestamps come back from the database.
func (r *PlatformUserRepository) Create(ctx context.Context, u *models.PlatformUser) (*models.PlatformUser, error) {
	query := `
		INSERT INTO platform_users (email, full_name, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + platformUserColumns

	created, err := scanPlatformUserRow(r.pool.QueryRow(ctx, query,
		strings.ToLower(u.Email), u.FullName, u.PasswordHash, u.Role, u.Active,
	))
	if err != nil {
		return nil, fmt.Errorf("create platform user: %w", err)
	}
	return created, nil
}

// CountByRole is used at startup to decide whether the bootstrap owner must be created.
func (r *PlatformUserRepository) CountByRole(ctx context.Context, role string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM platform_users WHERE role = $1`, role).Scan(&n)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return n, nil
}

func (r *PlatformUserRepository) TouchLastLogin(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE platform_users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return database.MapPostgresError(err)
}
