package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditRecord is the flattened form of a security event written to the log stream.
type AuditRecord struct {
	Kind      string
	Realm     string
	ActorID   string
	TenantID  string
	IPAddress string
	UserAgent string
	Success   bool
	Attrs     []slog.Attr
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.With(slog.String("audit_type", "security"))}
}

// Log writes one audit line. Failures are logged at warn level.
func (al *AuditLogger) Log(ctx context.Context, rec AuditRecord) {
	attrs := []slog.Attr{
		slog.String("event_type", rec.Kind),
		slog.Bool("success", rec.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if rec.Realm != "" {
		attrs = append(attrs, slog.String("realm", rec.Realm))
	}
	if rec.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", rec.ActorID))
	}
	if rec.TenantID != "" {
		attrs = append(attrs, slog.String("tenant_id", rec.TenantID))
	}
	if rec.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", rec.IPAddress))
	}
	if rec.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", rec.UserAgent))
	}
	attrs = append(attrs, rec.Attrs...)

	level := slog.LevelInfo
	if !rec.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
