package auth

import (
	"context"
	"net/http"
	"slices"

	"github.com/biasharahub/biashara/internal/models"
	pkghttp "github.com/biasharahub/biashara/pkg/http"
)

type contextKey string

const (
	identityContextKey  contextKey = "identity"
	subdomainContextKey contextKey = "tenant_subdomain"
)

// Identity headers mirrored for downstream handlers. Inbound copies are always
// stripped before the resolver sets them.
const (
	HeaderUserID          = "X-User-Id"
	HeaderUserEmail       = "X-User-Email"
	HeaderUserRole        = "X-User-Role"
	HeaderRealm           = "X-Realm"
	HeaderTenantID        = "X-Tenant-Id"
	HeaderTenantSubdomain = "X-Tenant-Subdomain"
)

var identityHeaders = []string{
	HeaderUserID, HeaderUserEmail, HeaderUserRole, HeaderRealm, HeaderTenantID, HeaderTenantSubdomain,
}

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID    string       `json:"userId"`
	Email     string       `json:"email"`
	Role      string       `json:"role"`
	Realm     models.Realm `json:"realm"`
	TenantID  string       `json:"tenantId,omitempty"`
	Subdomain string       `json:"subdomain,omitempty"`
	SessionID string       `json:"-"`
}

func IdentityFromClaims(c *models.SessionClaims) *Identity {
	return &Identity{
		UserID:    c.UserID,
		Email:     c.Email,
		Role:      c.Role,
		Realm:     c.Realm,
		TenantID:  c.TenantID,
		Subdomain: c.Subdomain,
		SessionID: c.ID,
	}
}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the identity injected by the resolver, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*Identity)
	return id, ok && id != nil
}

func WithTenantSubdomain(ctx context.Context, subdomain string) context.Context {
	return context.WithValue(ctx, subdomainContextKey, subdomain)
}

// TenantSubdomainFromContext returns the tenant resolved from the host or path.
func TenantSubdomainFromContext(ctx context.Context) string {
	s, _ := ctx.Value(subdomainContextKey).(string)
	return s
}

// RequireRole rejects callers outside realm or without one of roles.
func RequireRole(realm models.Realm, roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				pkghttp.WriteUnauthorized(w, "authentication required")
				return
			}
			if id.Realm != realm || !slices.Contains(roles, id.Role) {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func stripIdentityHeaders(h http.Header) {
	for _, k := range identityHeaders {
		h.Del(k)
	}
}

func setIdentityHeaders(h http.Header, id *Identity) {
	h.Set(HeaderUserID, id.UserID)
	h.Set(HeaderUserEmail, id.Email)
	h.Set(HeaderUserRole, id.Role)
	h.Set(HeaderRealm, string(id.Realm))
	if id.TenantID != "" {
		h.Set(HeaderTenantID, id.TenantID)
	}
	if id.Subdomain != "" {
		h.Set(HeaderTenantSubdomain, id.Subdomain)
	}
}
