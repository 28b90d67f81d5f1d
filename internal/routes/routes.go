package routes

import (
	"net/http"

	"github.com/biasharahub/biashara/internal/auth"
	"github.com/biasharahub/biashara/internal/handlers"
	"github.com/biasharahub/biashara/internal/middleware"
	"github.com/biasharahub/biashara/internal/models"
	pkghttp "github.com/biasharahub/biashara/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers served by the API.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Chat    *handlers.ChatHandler
	Webhook *handlers.WebhookHandler
	Tenant  *handlers.TenantHandler
	Health  *handlers.HealthHandler
	Metrics http.Handler
}

// Limits are per-IP request budgets for the public endpoints, per minute.
type Limits struct {
	ChatPerMinute     int
	WebhookPerMinute  int
	RegisterPerMinute int
	IPConfig          *pkghttp.IPConfig
	Observer          middleware.RateLimitObserver
}

// RegisterRoutes registers all application routes. The resolver runs first on every
// request; it decides which paths need a session and injects the caller's identity.
func RegisterRoutes(router chi.Router, h Handlers, resolver *auth.Resolver, limits Limits) {
	router.Use(resolver.Middleware)

	limit := func(name string, perMinute int) func(http.Handler) http.Handler {
		return middleware.RateLimitByIP(middleware.RateLimitConfig{
			Name:              name,
			RequestsPerMinute: perMinute,
			IPConfig:          limits.IPConfig,
			Observer:          limits.Observer,
		})
	}

	// Public routes
	router.Get("/health", h.Health.Health)
	if h.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	// Login throttling lives in the auth service, keyed by client IP.
	router.Post("/auth/{realm}/login", h.Auth.Login)
	router.Post("/auth/{realm}/logout", h.Auth.Logout)

	router.With(limit("register", limits.RegisterPerMinute)).Post("/tenants/register", h.Tenant.Register)
	router.With(limit("chat", limits.ChatPerMinute)).Post("/ai/chat", h.Chat.Chat)

	router.Route("/webhooks/whatsapp", func(r chi.Router) {
		r.Use(limit("webhook", limits.WebhookPerMinute))
		r.Get("/", h.Webhook.Verify)
		r.Post("/", h.Webhook.Receive)
	})

	// Platform API, session required (enforced by the resolver)
	router.Route("/api/platform", func(r chi.Router) {
		r.Use(auth.RequireRole(models.RealmPlatform,
			models.PlatformRoleOwner, models.PlatformRoleAdmin, models.PlatformRoleSales))
		r.Get("/me", h.Auth.Me)
		r.Get("/tenants/{subdomain}", h.Tenant.Get)
		r.With(auth.RequireRole(models.RealmPlatform, models.PlatformRoleOwner, models.PlatformRoleAdmin)).
			Post("/tenants/{subdomain}/status", h.Tenant.UpdateStatus)
	})

	// Tenant API, session required and bound to the request's tenant
	router.Route("/api/tenant", func(r chi.Router) {
		r.Use(auth.RequireRole(models.RealmTenant,
			models.TenantRoleOwner, models.TenantRoleAdmin, models.TenantRoleStaff))
		r.Get("/me", h.Auth.Me)
	})
}
