package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/biasharahub/biashara/internal/models"
	pkghttp "github.com/biasharahub/biashara/pkg/http"
)

// writeServiceError maps a service error onto the JSON error envelope.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		ve     *models.ValidationError
		ice    *models.InvalidCredentialsError
		locked *models.AccountLockedError
		rl     *models.RateLimitError
	)
	switch {
	case errors.As(err, &ve):
		pkghttp.WriteValidationError(w, ve.Fields)
	case errors.As(err, &rl):
		pkghttp.WriteTooManyRequests(w, rl.RetryAfter, "Too many login attempts. Please try again later.")
	case errors.As(err, &locked):
		minutes := locked.RemainingMinutes(time.Now())
		pkghttp.WriteLocked(w, locked.LockedUntil, lockedMessage(minutes))
	case errors.As(err, &ice):
		pkghttp.WriteInvalidCredentials(w, ice.RemainingAttempts)
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteInvalidCredentials(w, 0)
	case errors.Is(err, models.ErrAccountDeactivated):
		pkghttp.WriteError(w, http.StatusForbidden, "account_deactivated", "This account has been deactivated")
	case errors.Is(err, models.ErrTenantInactive):
		pkghttp.WriteError(w, http.StatusForbidden, "tenant_inactive", "This business account is not active")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "Insufficient permissions")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication required")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, err.Error())
	case errors.Is(err, models.ErrServiceUnavailable):
		logger.ErrorContext(r.Context(), "dependency unavailable", slog.String("path", r.URL.Path), slog.Any("error", err))
		pkghttp.WriteServiceUnavailable(w, "Service temporarily unavailable. Please try again.")
	default:
		logger.ErrorContext(r.Context(), "unhandled error", slog.String("path", r.URL.Path), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}

func lockedMessage(minutes int) string {
	switch minutes {
	case 0:
		return "Account is temporarily locked. Please try again shortly."
	case 1:
		return "Account is temporarily locked. Please try again in 1 minute."
	default:
		return fmt.Sprintf("Account is temporarily locked. Please try again in %d minutes.", minutes)
	}
}
