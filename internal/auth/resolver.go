package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/biasharahub/biashara/internal/models"
	pkghttp "github.com/biasharahub/biashara/pkg/http"
	"github.com/biasharahub/biashara/pkg/logger"
)

// SessionValidator checks a token for a realm, including revocation and tenant status.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string, realm models.Realm) (*models.SessionClaims, error)
}

// ResolverConfig configures the tenant resolution middleware.
type ResolverConfig struct {
	BaseDomain string
	Cookies    CookieConfig
}

// Resolver attaches tenant context and enforces realm sessions on protected routes.
type Resolver struct {
	validator SessionValidator
	sessions  *SessionManager
	cfg       ResolverConfig
	logger    *slog.Logger
}

func NewResolver(validator SessionValidator, sessions *SessionManager, cfg ResolverConfig, logger *slog.Logger) *Resolver {
	return &Resolver{
		validator: validator,
		sessions:  sessions,
		cfg:       cfg,
		logger:    logger,
	}
}

func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stripIdentityHeaders(r.Header)

		hostTenant := ExtractSubdomain(r.Host, res.cfg.BaseDomain)
		class, pathTenant := Classify(r.URL.Path, hostTenant)
		if class == ClassStatic {
			next.ServeHTTP(w, r)
			return
		}

		tenant := hostTenant
		if tenant == "" {
			tenant = pathTenant
		}
		ctx := r.Context()
		if tenant != "" {
			ctx = WithTenantSubdomain(ctx, tenant)
			r.Header.Set(HeaderTenantSubdomain, tenant)
		}

		switch class {
		case ClassPlatform:
			res.protect(w, r.WithContext(ctx), next, models.RealmPlatform, "")
		case ClassTenant:
			res.protect(w, r.WithContext(ctx), next, models.RealmTenant, tenant)
		default:
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	})
}

func (res *Resolver) protect(w http.ResponseWriter, r *http.Request, next http.Handler, realm models.Realm, tenant string) {
	ctx := r.Context()

	token := SessionToken(r, realm)
	if token == "" {
		res.deny(w, r, realm, tenant)
		return
	}

	claims, err := res.validator.ValidateSession(ctx, token, realm)
	if err != nil {
		level := slog.LevelDebug
		if errors.Is(err, models.ErrServiceUnavailable) {
			level = slog.LevelError
		}
		res.logger.Log(ctx, level, "session rejected",
			slog.String("realm", string(realm)),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		res.deny(w, r, realm, tenant)
		return
	}

	if realm == models.RealmTenant && tenant != "" && claims.Subdomain != tenant {
		res.logger.WarnContext(ctx, "tenant session used on another tenant",
			slog.String("session_tenant", claims.Subdomain),
			slog.String("request_tenant", tenant),
			slog.String("email", logger.SanitizedEmail(claims.Email)),
		)
		res.deny(w, r, realm, tenant)
		return
	}

	if realm == models.RealmPlatform && hasPathPrefix(r.URL.Path, "/admin") &&
		claims.Role != models.PlatformRoleOwner && claims.Role != models.PlatformRoleAdmin {
		http.Redirect(w, r, "/sales", http.StatusFound)
		return
	}

	if res.sessions != nil && res.sessions.ShouldRefresh(claims) {
		if fresh, err := res.sessions.Reissue(claims); err == nil {
			SetSessionCookie(w, realm, fresh.Token, fresh.ExpiresAt, res.cfg.Cookies)
		} else {
			res.logger.ErrorContext(ctx, "failed to refresh session", slog.Any("error", err))
		}
	}

	id := IdentityFromClaims(claims)
	setIdentityHeaders(r.Header, id)
	next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, id)))
}

// deny answers API paths with 401 JSON and pages with a redirect to the realm's login.
func (res *Resolver) deny(w http.ResponseWriter, r *http.Request, realm models.Realm, tenant string) {
	if isAPIPath(r.URL.Path) {
		pkghttp.WriteUnauthorized(w, "authentication required")
		return
	}

	next := url.QueryEscape(r.URL.RequestURI())
	if realm == models.RealmPlatform {
		http.Redirect(w, r, "/auth/platform/login?next="+next, http.StatusFound)
		return
	}

	loginPath := "/auth/tenant/login?next=" + next
	if ExtractSubdomain(r.Host, res.cfg.BaseDomain) != "" || tenant == "" || res.cfg.BaseDomain == "" {
		http.Redirect(w, r, loginPath, http.StatusFound)
		return
	}

	// path-addressed tenant: send the user to the tenant's own host
	scheme := "http"
	if res.cfg.Cookies.Secure {
		scheme = "https"
	}
	target := scheme + "://" + tenant + "." + strings.TrimPrefix(res.cfg.BaseDomain, ".") + loginPath
	http.Redirect(w, r, target, http.StatusFound)
}
