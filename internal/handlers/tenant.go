package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/biasharahub/biashara/internal/auth"
	"github.com/biasharahub/biashara/internal/models"
	"github.com/biasharahub/biashara/internal/services"
	pkghttp "github.com/biasharahub/biashara/pkg/http"
	"github.com/go-chi/chi/v5"
)

// TenantServiceInterface defines tenant onboarding and administration.
type TenantServiceInterface interface {
	Register(ctx context.Context, in services.RegisterTenantInput) (*models.Tenant, *models.TenantUser, error)
	Get(ctx context.Context, subdomain string) (*models.Tenant, error)
	UpdateStatus(ctx context.Context, actorID, subdomain string, status models.TenantStatus) (*models.Tenant, error)
}

type TenantHandler struct {
	service TenantServiceInterface
	logger  *slog.Logger
}

func NewTenantHandler(service TenantServiceInterface, logger *slog.Logger) *TenantHandler {
	return &TenantHandler{service: service, logger: logger}
}

// RegisterTenantRequest represents the request body for tenant registration
type RegisterTenantRequest struct {
	Subdomain     string   `json:"subdomain" validate:"required,subdomain"`
	BusinessName  string   `json:"businessName" validate:"required,max=200"`
	BusinessType  string   `json:"businessType" validate:"max=100"`
	Location      string   `json:"location" validate:"max=200"`
	Services      []string `json:"services" validate:"max=50"`
	OwnerEmail    string   `json:"ownerEmail" validate:"required,email"`
	OwnerName     string   `json:"ownerName" validate:"required,max=200"`
	OwnerPassword string   `json:"ownerPassword" validate:"required,min=8,max=72"`
}

// UpdateTenantStatusRequest represents the request body for a status change
type UpdateTenantStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=trial active suspended cancelled"`
}

// TenantResponse is the public view of a tenant.
type TenantResponse struct {
	ID           string              `json:"id"`
	Subdomain    string              `json:"subdomain"`
	BusinessName string              `json:"businessName"`
	BusinessType string              `json:"businessType,omitempty"`
	Location     string              `json:"location,omitempty"`
	Services     []string            `json:"services"`
	Status       models.TenantStatus `json:"status"`
	TrialEndsAt  *time.Time          `json:"trialEndsAt,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
}

func toTenantResponse(t *models.Tenant) TenantResponse {
	svcs := t.Services
	if svcs == nil {
		svcs = []string{}
	}
	return TenantResponse{
		ID:           t.ID,
		Subdomain:    t.Subdomain,
		BusinessName: t.BusinessName,
		BusinessType: t.BusinessType,
		Location:     t.Location,
		Services:     svcs,
		Status:       t.Status,
		TrialEndsAt:  t.TrialEndsAt,
		CreatedAt:    t.CreatedAt,
	}
}

// Register handles POST /tenants/register
func (h *TenantHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationError(w, fields)
		return
	}

	tenant, owner, err := h.service.Register(r.Context(), services.RegisterTenantInput{
		Subdomain:     req.Subdomain,
		BusinessName:  req.BusinessName,
		BusinessType:  req.BusinessType,
		Location:      req.Location,
		Services:      req.Services,
		OwnerEmail:    req.OwnerEmail,
		OwnerName:     req.OwnerName,
		OwnerPassword: req.OwnerPassword,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, map[string]any{
		"tenant": toTenantResponse(tenant),
		"owner": services.UserSummary{
			ID:        owner.ID,
			Email:     owner.Email,
			FullName:  owner.FullName,
			Role:      owner.Role,
			TenantID:  tenant.ID,
			Subdomain: tenant.Subdomain,
		},
	})
}

// Get handles GET /api/platform/tenants/{subdomain}
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant, err := h.service.Get(r.Context(), chi.URLParam(r, "subdomain"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toTenantResponse(tenant))
}

// UpdateStatus handles POST /api/platform/tenants/{subdomain}/status. Only platform
// owners and admins may change a status; the route's RequireRole checks the same.
func (h *TenantHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok || id.Realm != models.RealmPlatform {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}
	if id.Role != models.PlatformRoleOwner && id.Role != models.PlatformRoleAdmin {
		pkghttp.WriteForbidden(w, "Insufficient permissions")
		return
	}

	var req UpdateTenantStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationError(w, fields)
		return
	}
	status, err := models.ParseTenantStatus(req.Status)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	tenant, err := h.service.UpdateStatus(r.Context(), id.UserID, chi.URLParam(r, "subdomain"), status)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, toTenantResponse(tenant))
}
