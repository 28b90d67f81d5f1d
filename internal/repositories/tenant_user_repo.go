package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/biasharahub/biashara/internal/database"
	"github.com/biasharahub/biashara/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TenantUserRepository struct {
	pool *pgxpool.Pool
}

func NewTenantUserRepository(db *database.DB) *TenantUserRepository {
	return &TenantUserRepository{pool: db.Pool}
}

func scanTenantUserRow(scanner rowScanner) (*models.TenantUser, error) {
	var u models.TenantUser
	err := scanner.Scan(
		&u.ID, &u.TenantID, &u.Subdomain, &u.Email, &u.FullName, &u.PasswordHash,
		&u.Role, &u.Active, &u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &u, nil
}

// GetByEmail finds a user inside one tenant. The same email may exist in other tenants.
func (r *TenantUserRepository) GetByEmail(ctx context.Context, tenantID, email string) (*models.TenantUser, error) {
	query := `
		SELECT u.id, u.tenant_id, t.subdomain, u.email, u.full_name, u.password_hash,
		       u.role, u.is_active, u.last_login_at, u.created_at, u.updated_at
		FROM tenant_users u
		JOIN tenants t ON t.id = u.tenant_id
		WHERE u.tenant_id = $1 AND u.email = $2
	`
	return scanTenantUserRow(r.pool.QueryRow(ctx, query, tenantID, strings.ToLower(email)))
}

func (r *TenantUserRepository) TouchLastLogin(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tenant_users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	return database.MapPostgresError(err)
}

func createTenantUser(ctx context.Context, q querier, subdomain string, u *models.TenantUser) (*models.TenantUser, error) {
	query := `
		INSERT INTO tenant_users (tenant_id, email, full_name, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, tenant_id, $7::text, email, full_name, password_hash,
		          role, is_active, last_login_at, created_at, updated_at
	`
	created, err := scanTenantUserRow(q.QueryRow(ctx, query,
		u.TenantID, strings.ToLower(u.Email), u.FullName, u.PasswordHash, u.Role, u.Active, subdomain,
	))
	if err != nil {
		return nil, fmt.Errorf("create tenant user: %w", err)
	}
	return created, nil
}
