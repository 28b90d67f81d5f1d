package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/biasharahub/biashara/internal/models"
)

const (
	PlatformSessionCookie = "platform_session"
	TenantSessionCookie   = "tenant_session"
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
}

// CookieName returns the session cookie for a realm.
func CookieName(realm models.Realm) string {
	if realm == models.RealmTenant {
		return TenantSessionCookie
	}
	return PlatformSessionCookie
}

// SetSessionCookie writes a host-only HttpOnly session cookie. A tenant cookie set on
// acme.example.com is never sent to another tenant's host.
func SetSessionCookie(w http.ResponseWriter, realm models.Realm, token string, expiresAt time.Time, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(realm),
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// ClearSessionCookie expires the realm's session cookie.
func ClearSessionCookie(w http.ResponseWriter, realm models.Realm, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName(realm),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// SessionToken returns the realm cookie value, or a bearer token when no cookie is set.
func SessionToken(r *http.Request, realm models.Realm) string {
	if c, err := r.Cookie(CookieName(realm)); err == nil && c.Value != "" {
		return c.Value
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
