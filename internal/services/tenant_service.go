package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/biasharahub/biashara/internal/models"
	pkgauth "github.com/biasharahub/biashara/pkg/auth"
)

// TenantServiceConfig configures onboarding.
type TenantServiceConfig struct {
	BaseDomain  string
	Scheme      string // scheme for links in emails
	TrialPeriod time.Duration
}

// RegisterTenantInput is a new business and its owner account.
type RegisterTenantInput struct {
	Subdomain     string
	BusinessName  string
	BusinessType  string
	Location      string
	Services      []string
	OwnerEmail    string
	OwnerName     string
	OwnerPassword string
}

// TenantService handles tenant onboarding and administration.
type TenantService struct {
	repo       TenantRepository
	auditor    Auditor
	mailer     EmailService
	events     EventPublisher
	dispatcher *Dispatcher
	cfg        TenantServiceConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewTenantService creates a new TenantService. auditor, mailer, events and dispatcher may be nil.
func NewTenantService(repo TenantRepository, auditor Auditor, mailer EmailService, events EventPublisher, dispatcher *Dispatcher, cfg TenantServiceConfig, logger *slog.Logger) *TenantService {
	if cfg.TrialPeriod <= 0 {
		cfg.TrialPeriod = 14 * 24 * time.Hour
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	return &TenantService{
		repo:       repo,
		auditor:    auditor,
		mailer:     mailer,
		events:     events,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Register creates a trial tenant and its owner in one transaction. Notifications are
// sent only after the commit.
func (s *TenantService) Register(ctx context.Context, in RegisterTenantInput) (*models.Tenant, *models.TenantUser, error) {
	subdomain := models.NormalizeSubdomain(in.Subdomain)
	email := strings.ToLower(strings.TrimSpace(in.OwnerEmail))

	fields := map[string]string{}
	var ve *models.ValidationError
	if err := models.ValidateSubdomain(subdomain); errors.As(err, &ve) {
		fields["subdomain"] = ve.Fields["subdomain"]
	}
	if strings.TrimSpace(in.BusinessName) == "" {
		fields["businessName"] = "is required"
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		fields["ownerEmail"] = "must be a valid email address"
	}
	if strings.TrimSpace(in.OwnerName) == "" {
		fields["ownerName"] = "is required"
	}
	if err := pkgauth.ValidatePassword(in.OwnerPassword); err != nil {
		fields["ownerPassword"] = err.Error()
	}
	if len(fields) > 0 {
		return nil, nil, &models.ValidationError{Fields: fields}
	}

	hash, err := pkgauth.HashPassword(in.OwnerPassword)
	if err != nil {
		return nil, nil, fmt.Errorf("hash owner password: %w", err)
	}

	trialEnds := s.now().Add(s.cfg.TrialPeriod)
	tenant, owner, err := s.repo.CreateWithOwner(ctx, &models.Tenant{
		Subdomain:    subdomain,
		BusinessName: strings.TrimSpace(in.BusinessName),
		BusinessType: strings.TrimSpace(in.BusinessType),
		Location:     strings.TrimSpace(in.Location),
		Services:     cleanServices(in.Services),
		Status:       models.TenantStatusTrial,
		TrialEndsAt:  &trialEnds,
	}, &models.TenantUser{
		Email:        email,
		FullName:     strings.TrimSpace(in.OwnerName),
		PasswordHash: hash,
		Role:         models.TenantRoleOwner,
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, nil, fmt.Errorf("%w: subdomain %q is taken", models.ErrConflict, subdomain)
		}
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "tenant registered",
		slog.String("tenant_id", tenant.ID),
		slog.String("subdomain", tenant.Subdomain),
	)

	if s.auditor != nil {
		s.auditor.Emit(ctx, models.TenantRegistered{
			TenantID:   tenant.ID,
			Subdomain:  tenant.Subdomain,
			OwnerID:    owner.ID,
			OwnerEmail: owner.Email,
		})
	}
	if s.mailer != nil {
		loginURL := s.loginURL(tenant.Subdomain)
		s.dispatch(ctx, "email.welcome", func(ctx context.Context) error {
			return s.mailer.SendWelcome(ctx, owner.Email, tenant.BusinessName, loginURL)
		})
	}
	s.publish(ctx, SubjectTenantRegistered, tenantEvent{
		TenantID:  tenant.ID,
		Subdomain: tenant.Subdomain,
		Status:    tenant.Status,
		Timestamp: s.now().UTC(),
	})

	return tenant, owner, nil
}

// Get returns a tenant by subdomain.
func (s *TenantService) Get(ctx context.Context, subdomain string) (*models.Tenant, error) {
	return s.repo.GetBySubdomain(ctx, models.NormalizeSubdomain(subdomain))
}

// UpdateStatus moves a tenant to a new status. Sessions of a tenant leaving
// {trial, active} stop validating at once because validation reads the status.
func (s *TenantService) UpdateStatus(ctx context.Context, actorID, subdomain string, status models.TenantStatus) (*models.Tenant, error) {
	current, err := s.Get(ctx, subdomain)
	if err != nil {
		return nil, err
	}
	if current.DeletedAt != nil {
		return nil, models.ErrNotFound
	}
	if current.Status == status {
		return current, nil
	}

	updated, err := s.repo.UpdateStatus(ctx, current.ID, status)
	if err != nil {
		return nil, err
	}

	if s.auditor != nil {
		s.auditor.Emit(ctx, models.TenantStatusChanged{
			TenantID:  updated.ID,
			Subdomain: updated.Subdomain,
			From:      current.Status,
			To:        updated.Status,
			ActorID:   actorID,
		})
	}
	s.publish(ctx, SubjectTenantStatusChanged, tenantEvent{
		TenantID:  updated.ID,
		Subdomain: updated.Subdomain,
		Status:    updated.Status,
		Previous:  current.Status,
		Timestamp: s.now().UTC(),
	})
	return updated, nil
}

type tenantEvent struct {
	TenantID  string              `json:"tenant_id"`
	Subdomain string              `json:"subdomain"`
	Status    models.TenantStatus `json:"status"`
	Previous  models.TenantStatus `json:"previous_status,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

func (s *TenantService) loginURL(subdomain string) string {
	if s.cfg.BaseDomain == "" {
		return "/auth/tenant/login"
	}
	return fmt.Sprintf("%s://%s.%s/auth/tenant/login", s.cfg.Scheme, subdomain, s.cfg.BaseDomain)
}

func (s *TenantService) publish(ctx context.Context, subject string, payload any) {
	if s.events == nil {
		return
	}
	s.dispatch(ctx, "publish."+subject, func(ctx context.Context) error {
		return s.events.Publish(ctx, subject, payload)
	})
}

func (s *TenantService) dispatch(ctx context.Context, name string, task Task) {
	if s.dispatcher != nil {
		s.dispatcher.Go(name, task)
		return
	}
	if err := task(context.WithoutCancel(ctx)); err != nil {
		s.logger.WarnContext(ctx, "side effect failed", slog.String("task", name), slog.Any("error", err))
	}
}

func cleanServices(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, svc := range in {
		svc = strings.TrimSpace(svc)
		if svc == "" || seen[strings.ToLower(svc)] {
			continue
		}
		seen[strings.ToLower(svc)] = true
		out = append(out, svc)
	}
	return out
}
