package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/biasharahub/biashara/internal/models"
	pkgauth "github.com/biasharahub/biashara/pkg/auth"
)

// LoginScope narrows a credential lookup. Only the tenant realm uses it.
type LoginScope struct {
	Subdomain string
}

// Realm is the per-realm half of the auth service: where identities live and what
// makes a session of that realm valid. Lookup returns models.ErrNotFound for an
// unknown identity.
type Realm interface {
	Name() models.Realm
	Lookup(ctx context.Context, email string, scope LoginScope) (models.Principal, error)
	VerifyPassword(p models.Principal, password string) error
	TouchLastLogin(ctx context.Context, id string) error
	// CheckSession runs the realm's extra validation for an otherwise valid session.
	CheckSession(ctx context.Context, claims *models.SessionClaims) error
	RedirectURL(p models.Principal) string
}

// PlatformUserRepository is the credential store for platform operators.
type PlatformUserRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.PlatformUser, error)
	TouchLastLogin(ctx context.Context, id string) error
}

// TenantUserRepository is the credential store for business users.
type TenantUserRepository interface {
	GetByEmail(ctx context.Context, tenantID, email string) (*models.TenantUser, error)
	TouchLastLogin(ctx context.Context, id string) error
}

// TenantRepository reads and writes tenants.
type TenantRepository interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	GetByID(ctx context.Context, id string) (*models.Tenant, error)
	CreateWithOwner(ctx context.Context, t *models.Tenant, owner *models.TenantUser) (*models.Tenant, *models.TenantUser, error)
	UpdateStatus(ctx context.Context, id string, status models.TenantStatus) (*models.Tenant, error)
}

func verifyBcrypt(p models.Principal, password string) error {
	if err := pkgauth.ComparePassword(p.CredentialHash(), password); err != nil {
		return models.ErrInvalidCredentials
	}
	return nil
}

type platformRealm struct {
	users PlatformUserRepository
}

func NewPlatformRealm(users PlatformUserRepository) Realm {
	return &platformRealm{users: users}
}

func (r *platformRealm) Name() models.Realm { return models.RealmPlatform }

func (r *platformRealm) Lookup(ctx context.Context, email string, _ LoginScope) (models.Principal, error) {
	u, err := r.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *platformRealm) VerifyPassword(p models.Principal, password string) error {
	return verifyBcrypt(p, password)
}

func (r *platformRealm) TouchLastLogin(ctx context.Context, id string) error {
	return r.users.TouchLastLogin(ctx, id)
}

func (r *platformRealm) CheckSession(context.Context, *models.SessionClaims) error { return nil }

func (r *platformRealm) RedirectURL(p models.Principal) string {
	switch p.PrincipalRole() {
	case models.PlatformRoleOwner, models.PlatformRoleAdmin:
		return "/admin"
	default:
		return "/sales"
	}
}

type tenantRealm struct {
	tenants TenantRepository
	users   TenantUserRepository
	now     func() time.Time
}

func NewTenantRealm(tenants TenantRepository, users TenantUserRepository) Realm {
	return &tenantRealm{tenants: tenants, users: users, now: time.Now}
}

func (r *tenantRealm) Name() models.Realm { return models.RealmTenant }

// Lookup resolves the tenant first. An unknown tenant reads as an unknown user so
// that tenant existence cannot be probed through the login form.
func (r *tenantRealm) Lookup(ctx context.Context, email string, scope LoginScope) (models.Principal, error) {
	subdomain := models.NormalizeSubdomain(scope.Subdomain)
	if subdomain == "" {
		return nil, models.ErrNotFound
	}

	tenant, err := r.tenants.GetBySubdomain(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	if !tenant.AllowsSessions(r.now()) {
		return nil, models.ErrTenantInactive
	}

	u, err := r.users.GetByEmail(ctx, tenant.ID, email)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *tenantRealm) VerifyPassword(p models.Principal, password string) error {
	return verifyBcrypt(p, password)
}

func (r *tenantRealm) TouchLastLogin(ctx context.Context, id string) error {
	return r.users.TouchLastLogin(ctx, id)
}

func (r *tenantRealm) CheckSession(ctx context.Context, claims *models.SessionClaims) error {
	tenant, err := r.tenants.GetByID(ctx, claims.TenantID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("%w: tenant no longer exists", models.ErrUnauthorized)
		}
		return err
	}
	if tenant.Subdomain != claims.Subdomain {
		return fmt.Errorf("%w: tenant subdomain changed", models.ErrUnauthorized)
	}
	if !tenant.AllowsSessions(r.now()) {
		return models.ErrTenantInactive
	}
	return nil
}

func (r *tenantRealm) RedirectURL(models.Principal) string { return "/dashboard" }
