package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/biasharahub/biashara/internal/models"
	pkglogger "github.com/biasharahub/biashara/pkg/logger"
)

// Event subjects. All live under the biashara.> stream.
const (
	SubjectAuditPrefix         = "biashara.audit."
	SubjectTenantRegistered    = "biashara.tenant.registered"
	SubjectTenantStatusChanged = "biashara.tenant.status_changed"
)

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload any) error
}

// AuditLogRepository persists audit rows.
type AuditLogRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// Auditor records security events.
type Auditor interface {
	Emit(ctx context.Context, evt models.AuditEvent)
}

// AuditService handles audit logging with dual-write pattern (slog + database),
// and mirrors every event onto the event bus.
type AuditService struct {
	repo       AuditLogRepository
	events     EventPublisher
	audit      *pkglogger.AuditLogger
	dispatcher *Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

// NewAuditService creates a new AuditService. repo, events and dispatcher may be nil.
func NewAuditService(repo AuditLogRepository, events EventPublisher, dispatcher *Dispatcher, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:       repo,
		events:     events,
		audit:      pkglogger.NewAuditLogger(logger),
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Emit writes the audit log line immediately and queues persistence and publication.
func (s *AuditService) Emit(ctx context.Context, evt models.AuditEvent) {
	env := evt.Envelope()
	s.audit.Log(ctx, pkglogger.AuditRecord{
		Kind:      evt.Kind(),
		Realm:     string(env.Realm),
		ActorID:   env.ActorID,
		TenantID:  env.TenantID,
		IPAddress: env.IPAddress,
		UserAgent: env.UserAgent,
		Success:   env.Success,
		Attrs:     eventAttrs(evt),
	})

	row, err := models.NewAuditLog(evt, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to build audit row", slog.Any("error", err))
		return
	}

	if s.repo != nil {
		s.run(ctx, "audit.persist", func(ctx context.Context) error {
			if err := s.repo.Create(ctx, row); err != nil {
				return fmt.Errorf("persist %s audit log: %w", row.EventType, err)
			}
			return nil
		})
	}
	if s.events != nil {
		s.run(ctx, "audit.publish", func(ctx context.Context) error {
			return s.events.Publish(ctx, SubjectAuditPrefix+row.EventType, row)
		})
	}
}

func (s *AuditService) run(ctx context.Context, name string, task Task) {
	if s.dispatcher != nil {
		s.dispatcher.Go(name, task)
		return
	}
	if err := task(context.WithoutCancel(ctx)); err != nil {
		s.logger.ErrorContext(ctx, "audit side effect failed", slog.String("task", name), slog.Any("error", err))
	}
}

// eventAttrs adds the event-specific fields to the log line. Emails are masked.
func eventAttrs(evt models.AuditEvent) []slog.Attr {
	switch e := evt.(type) {
	case models.LoginSucceeded:
		return []slog.Attr{
			slog.String("email", pkglogger.SanitizedEmail(e.Email)),
			slog.String("session_id", e.SessionID),
		}
	case models.LoginFailed:
		attrs := []slog.Attr{
			slog.String("email", pkglogger.SanitizedEmail(e.Email)),
			slog.String("failure_reason", e.Reason),
		}
		if e.RemainingAttempts > 0 {
			attrs = append(attrs, slog.Int("remaining_attempts", e.RemainingAttempts))
		}
		return attrs
	case models.AccountLocked:
		return []slog.Attr{
			slog.String("email", pkglogger.SanitizedEmail(e.Email)),
			slog.Time("locked_until", e.LockedUntil),
		}
	case models.LoggedOut:
		return []slog.Attr{slog.String("session_id", e.SessionID)}
	case models.TenantRegistered:
		return []slog.Attr{
			slog.String("subdomain", e.Subdomain),
			slog.String("owner_email", pkglogger.SanitizedEmail(e.OwnerEmail)),
		}
	case models.TenantStatusChanged:
		return []slog.Attr{
			slog.String("subdomain", e.Subdomain),
			slog.String("from", string(e.From)),
			slog.String("to", string(e.To)),
		}
	default:
		return nil
	}
}
