package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/biasharahub/biashara/internal/auth"
	"github.com/biasharahub/biashara/internal/models"
	"github.com/biasharahub/biashara/internal/services"
	pkghttp "github.com/biasharahub/biashara/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, realm models.Realm, in services.LoginInput) (*services.LoginResult, error)
	Logout(ctx context.Context, realm models.Realm, token string) error
}

// AuthHandler handles login and logout for both realms.
type AuthHandler struct {
	service  AuthServiceInterface
	cookies  auth.CookieConfig
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, cookies auth.CookieConfig, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		cookies:  cookies,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,max=72"`
	Subdomain string `json:"subdomain,omitempty" validate:"omitempty,subdomain"`
}

// LoginResponse is returned on a successful login. The session itself travels in the cookie.
type LoginResponse struct {
	Success     bool                 `json:"success"`
	User        services.UserSummary `json:"user"`
	RedirectURL string               `json:"redirectUrl"`
}

// Login handles POST /auth/{realm}/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	realm, err := models.ParseRealm(chi.URLParam(r, "realm"))
	if err != nil {
		pkghttp.WriteNotFound(w, "Unknown realm")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationError(w, fields)
		return
	}

	// A tenant login on {tenant}.{base} takes the tenant from the host.
	subdomain := req.Subdomain
	if realm == models.RealmTenant && subdomain == "" {
		subdomain = auth.TenantSubdomainFromContext(r.Context())
	}

	result, err := h.service.Login(r.Context(), realm, services.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		Subdomain: subdomain,
		ClientIP:  pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, realm, result.Session.Token, result.Session.ExpiresAt, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Success:     true,
		User:        result.User,
		RedirectURL: result.RedirectURL,
	})
}

// Logout handles POST /auth/{realm}/logout. It always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	realm, err := models.ParseRealm(chi.URLParam(r, "realm"))
	if err != nil {
		pkghttp.WriteNotFound(w, "Unknown realm")
		return
	}

	if token := auth.SessionToken(r, realm); token != "" {
		if err := h.service.Logout(r.Context(), realm, token); err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
	}

	auth.ClearSessionCookie(w, realm, h.cookies)
	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me echoes the identity injected by the tenant resolution middleware.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, id)
}
