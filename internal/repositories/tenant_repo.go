package repositories

import (
	"context"
	"fmt"

	"github.com/biasharahub/biashara/internal/database"
	"github.com/biasharahub/biashara/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

const tenantColumns = `id, subdomain, business_name, business_type, location, services,
	whatsapp_phone_number_id, status, trial_ends_at, deleted_at, created_at, updated_at`

type TenantRepository struct {
	db *database.DB
}

func NewTenantRepository(db *database.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func scanTenantRow(scanner rowScanner) (*models.Tenant, error) {
	var t models.Tenant
	var status string
	err := scanner.Scan(
		&t.ID, &t.Subdomain, &t.BusinessName, &t.BusinessType, &t.Location, &t.Services,
		&t.WhatsAppPhoneNumberID, &status, &t.TrialEndsAt, &t.DeletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	t.Status = models.TenantStatus(status)
	return &t, nil
}

// GetBySubdomain returns the tenant including soft-deleted rows; callers decide what
// a deleted tenant means for them.
func (r *TenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE subdomain = $1`
	return scanTenantRow(r.db.Pool.QueryRow(ctx, query, subdomain))
}

func (r *TenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenantRow(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByWhatsAppPhoneID maps an inbound webhook's business phone number to its tenant.
func (r *TenantRepository) GetByWhatsAppPhoneID(ctx context.Context, phoneNumberID string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE whatsapp_phone_number_id = $1 AND deleted_at IS NULL`
	return scanTenantRow(r.db.Pool.QueryRow(ctx, query, phoneNumberID))
}

// CreateWithOwner inserts the tenant and its owner in one transaction.
func (r *TenantRepository) CreateWithOwner(ctx context.Context, t *models.Tenant, owner *models.TenantUser) (*models.Tenant, *models.TenantUser, error) {
	var createdTenant *models.Tenant
	var createdOwner *models.TenantUser

	services := t.Services
	if services == nil {
		services = []string{}
	}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO tenants (subdomain, business_name, business_type, location, services,
			                     whatsapp_phone_number_id, status, trial_ends_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING ` + tenantColumns

		var err error
		createdTenant, err = scanTenantRow(tx.QueryRow(ctx, query,
			t.Subdomain, t.BusinessName, t.BusinessType, t.Location, pq.Array(services),
			t.WhatsAppPhoneNumberID, string(t.Status), t.TrialEndsAt,
		))
		if err != nil {
			return fmt.Errorf("create tenant: %w", err)
		}

		owner.TenantID = createdTenant.ID
		createdOwner, err = createTenantUser(ctx, tx, createdTenant.Subdomain, owner)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return createdTenant, createdOwner, nil
}

// UpdateStatus sets the subscription status and returns the updated tenant.
func (r *TenantRepository) UpdateStatus(ctx context.Context, id string, status models.TenantStatus) (*models.Tenant, error) {
	query := `
		UPDATE tenants SET status = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + tenantColumns
	return scanTenantRow(r.db.Pool.QueryRow(ctx, query, id, string(status)))
}
