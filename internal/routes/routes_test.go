package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/biasharahub/biashara/internal/auth"
	"github.com/biasharahub/biashara/internal/handlers"
	"github.com/biasharahub/biashara/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parsingValidator accepts any well-signed token of the requested realm.
type parsingValidator struct{ sessions *auth.SessionManager }

func (v parsingValidator) ValidateSession(_ context.Context, token string, realm models.Realm) (*models.SessionClaims, error) {
	claims, err := v.sessions.Parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Realm != realm {
		return nil, fmt.Errorf("%w: %w", models.ErrUnauthorized, models.ErrRealmMismatch)
	}
	return claims, nil
}

func newTestRouter(t *testing.T) (http.Handler, *auth.SessionManager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := auth.NewSessionManager("routes-test-secret-0123456789abcdef", time.Hour)
	resolver := auth.NewResolver(parsingValidator{sessions}, sessions, auth.ResolverConfig{BaseDomain: "biashara.test"}, logger)

	tenantSvc := &handlers.MockTenantService{
		GetFunc: func(_ context.Context, sub string) (*models.Tenant, error) {
			return &models.Tenant{ID: "t-1", Subdomain: sub, Status: models.TenantStatusActive}, nil
		},
		UpdateStatusFunc: func(_ context.Context, _ string, sub string, st models.TenantStatus) (*models.Tenant, error) {
			return &models.Tenant{ID: "t-1", Subdomain: sub, Status: st}, nil
		},
	}

	r := chi.NewRouter()
	RegisterRoutes(r, Handlers{
		Auth:    handlers.NewAuthHandler(&handlers.MockAuthService{}, auth.CookieConfig{}, nil, logger),
		Chat:    handlers.NewChatHandler(&handlers.MockChatService{}, logger),
		Webhook: handlers.NewWebhookHandler(&handlers.MockInboundQueue{}, handlers.WebhookConfig{VerifyToken: "v", AppSecret: "s"}, logger),
		Tenant:  handlers.NewTenantHandler(tenantSvc, logger),
		Health:  handlers.NewHealthHandler(nil),
	}, resolver, Limits{ChatPerMinute: 100, WebhookPerMinute: 100, RegisterPerMinute: 100})
	return r, sessions
}

func platformToken(t *testing.T, sessions *auth.SessionManager, role string) string {
	s, err := sessions.Issue(&models.PlatformUser{ID: "op-1", Email: "ops@biashara.co.ke", Role: role, Active: true})
	require.NoError(t, err)
	return s.Token
}

func tenantToken(t *testing.T, sessions *auth.SessionManager, subdomain string) string {
	s, err := sessions.Issue(&models.TenantUser{ID: "u-1", TenantID: "t-" + subdomain, Subdomain: subdomain, Email: "owner@x.co.ke", Role: models.TenantRoleOwner, Active: true})
	require.NoError(t, err)
	return s.Token
}

func do(h http.Handler, method, host, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Host = host
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoutes_PublicEndpoints(t *testing.T) {
	h, _ := newTestRouter(t)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "biashara.test", "/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "acme.biashara.test", "/ai/chat", `{"message":"hi"}`, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "biashara.test", "/webhooks/whatsapp", `{}`, nil).Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "biashara.test", "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=v&hub.challenge=c", "", nil).Code)
}

func TestRoutes_PlatformAPI(t *testing.T) {
	h, sessions := newTestRouter(t)

	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "biashara.test", "/api/platform/me", "", nil).Code)

	sales := &http.Cookie{Name: auth.PlatformSessionCookie, Value: platformToken(t, sessions, models.PlatformRoleSales)}
	w := do(h, http.MethodGet, "biashara.test", "/api/platform/me", "", sales)
	require.Equal(t, http.StatusOK, w.Code)
	var me map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "op-1", me["userId"])

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "biashara.test", "/api/platform/tenants/acme", "", sales).Code)
	assert.Equal(t, http.StatusForbidden, do(h, http.MethodPost, "biashara.test", "/api/platform/tenants/acme/status", `{"status":"suspended"}`, sales).Code)

	admin := &http.Cookie{Name: auth.PlatformSessionCookie, Value: platformToken(t, sessions, models.PlatformRoleAdmin)}
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "biashara.test", "/api/platform/tenants/acme/status", `{"status":"suspended"}`, admin).Code)
}

func TestRoutes_TenantIsolation(t *testing.T) {
	h, sessions := newTestRouter(t)
	acme := &http.Cookie{Name: auth.TenantSessionCookie, Value: tenantToken(t, sessions, "acme")}

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "acme.biashara.test", "/api/tenant/me", "", acme).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "globex.biashara.test", "/api/tenant/me", "", acme).Code)

	// A tenant session never opens the platform API.
	platformCookie := &http.Cookie{Name: auth.PlatformSessionCookie, Value: acme.Value}
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "biashara.test", "/api/platform/me", "", platformCookie).Code)
}
