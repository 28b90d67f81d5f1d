package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/biasharahub/biashara/internal/auth"
	"github.com/biasharahub/biashara/internal/models"
	"github.com/biasharahub/biashara/internal/ratelimit"
	pkgauth "github.com/biasharahub/biashara/pkg/auth"
	pkglogger "github.com/biasharahub/biashara/pkg/logger"
)

// LoginAttemptRepository stores failed-login counters per (realm, email).
type LoginAttemptRepository interface {
	Get(ctx context.Context, realm models.Realm, email string) (*models.LoginAttemptCounter, error)
	RecordFailure(ctx context.Context, realm models.Realm, email string, threshold int, lockFor time.Duration) (*models.LoginAttemptCounter, error)
	Reset(ctx context.Context, realm models.Realm, email string) error
}

// SessionRevocationRepository stores revoked session ids until they expire.
type SessionRevocationRepository interface {
	Revoke(ctx context.Context, jti string, realm models.Realm, userID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// LoginObserver is told the outcome of every login attempt.
type LoginObserver interface {
	ObserveLogin(realm models.Realm, outcome string)
}

// Login outcomes reported to the observer.
const (
	LoginOutcomeSuccess     = "success"
	LoginOutcomeInvalid     = "invalid_credentials"
	LoginOutcomeLocked      = "locked"
	LoginOutcomeRateLimited = "rate_limited"
	LoginOutcomeInactive    = "inactive"
	LoginOutcomeError       = "error"
)

// AuthConfig holds the lockout and session settings.
type AuthConfig struct {
	LockThreshold   int
	LockDuration    time.Duration
	ValidateTimeout time.Duration
}

// LoginInput is one login attempt.
type LoginInput struct {
	Email     string
	Password  string
	Subdomain string
	ClientIP  string
	UserAgent string
}

// UserSummary is the identity returned to the client after login.
type UserSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	Role      string `json:"role"`
	TenantID  string `json:"tenantId,omitempty"`
	Subdomain string `json:"subdomain,omitempty"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Realm       models.Realm
	Session     *auth.IssuedSession
	User        UserSummary
	RedirectURL string
}

// AuthServiceDeps wires an AuthService. Observer, Timing, Mailer and Dispatcher are optional.
type AuthServiceDeps struct {
	Realms      []Realm
	Attempts    LoginAttemptRepository
	Revocations SessionRevocationRepository
	Limiter     ratelimit.Limiter
	Sessions    *auth.SessionManager
	Timing      *auth.TimingDelay
	Auditor     Auditor
	Mailer      EmailService
	Dispatcher  *Dispatcher
	Observer    LoginObserver
	Logger      *slog.Logger
}

// AuthService handles authentication for both realms. Realm-specific behaviour lives in
// the Realm strategies; lockout, rate limiting and sessions are shared.
type AuthService struct {
	realms      map[models.Realm]Realm
	attempts    LoginAttemptRepository
	revocations SessionRevocationRepository
	limiter     ratelimit.Limiter
	sessions    *auth.SessionManager
	timing      *auth.TimingDelay
	auditor     Auditor
	mailer      EmailService
	dispatcher  *Dispatcher
	observer    LoginObserver
	cfg         AuthConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(deps AuthServiceDeps, cfg AuthConfig) *AuthService {
	realms := make(map[models.Realm]Realm, len(deps.Realms))
	for _, r := range deps.Realms {
		realms[r.Name()] = r
	}
	if cfg.LockThreshold <= 0 {
		cfg.LockThreshold = 5
	}
	if cfg.LockDuration <= 0 {
		cfg.LockDuration = 30 * time.Minute
	}
	if cfg.ValidateTimeout <= 0 {
		cfg.ValidateTimeout = 2 * time.Second
	}
	return &AuthService{
		realms:      realms,
		attempts:    deps.Attempts,
		revocations: deps.Revocations,
		limiter:     deps.Limiter,
		sessions:    deps.Sessions,
		timing:      deps.Timing,
		auditor:     deps.Auditor,
		mailer:      deps.Mailer,
		dispatcher:  deps.Dispatcher,
		observer:    deps.Observer,
		cfg:         cfg,
		logger:      deps.Logger,
		now:         time.Now,
	}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrServiceUnavailable, op, err)
}

// Login authenticates against one realm. The checks run in a fixed order: client rate
// limit, account lock, lookup, active flag, password.
func (s *AuthService) Login(ctx context.Context, realm models.Realm, in LoginInput) (result *LoginResult, err error) {
	start := s.now()
	email := strings.ToLower(strings.TrimSpace(in.Email))

	strategy, ok := s.realms[realm]
	if !ok {
		return nil, models.NewValidationError("realm", "unknown realm")
	}
	if err := validateLoginInput(realm, email, in); err != nil {
		return nil, err
	}

	defer func() {
		s.observe(realm, err)
		var rl *models.RateLimitError
		if err != nil && !errors.As(err, &rl) && !errors.Is(err, models.ErrServiceUnavailable) {
			s.timing.WaitFrom(ctx, start, false)
		}
	}()

	// 1. client rate limit
	hit, err := s.limiter.Hit(ctx, "login:"+in.ClientIP)
	if err != nil {
		return nil, unavailable("rate limiter", err)
	}
	if hit.Limited {
		s.logger.WarnContext(ctx, "login rate limited",
			slog.String("realm", string(realm)),
			slog.String("ip_address", in.ClientIP),
			slog.Int("count", hit.Count),
		)
		return nil, &models.RateLimitError{RetryAfter: hit.RetryAfter}
	}

	// 2. account lock
	counter, err := s.attempts.Get(ctx, realm, email)
	if err != nil {
		return nil, unavailable("login attempts", err)
	}
	if counter.IsLocked(s.now()) {
		s.emit(ctx, models.LoginFailed{Realm: realm, Email: email, Reason: "account_locked", IPAddress: in.ClientIP, UserAgent: in.UserAgent})
		return nil, &models.AccountLockedError{LockedUntil: *counter.LockedUntil}
	}

	// 3. lookup
	principal, err := strategy.Lookup(ctx, email, LoginScope{Subdomain: in.Subdomain})
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkgauth.CompareDummy(in.Password)
		return nil, s.recordFailure(ctx, realm, email, nil, "unknown_identity", in)
	case errors.Is(err, models.ErrTenantInactive):
		s.emit(ctx, models.LoginFailed{Realm: realm, Email: email, Reason: "tenant_inactive", IPAddress: in.ClientIP, UserAgent: in.UserAgent})
		return nil, models.ErrTenantInactive
	case err != nil:
		return nil, unavailable("credential lookup", err)
	}

	// 4. active flag
	if !principal.IsActive() {
		s.emit(ctx, models.LoginFailed{Realm: realm, Email: email, Reason: "account_deactivated", IPAddress: in.ClientIP, UserAgent: in.UserAgent})
		return nil, models.ErrAccountDeactivated
	}

	// 5. password
	if err := strategy.VerifyPassword(principal, in.Password); err != nil {
		return nil, s.recordFailure(ctx, realm, email, principal, "invalid_password", in)
	}

	// 6. success
	if err := s.attempts.Reset(ctx, realm, email); err != nil {
		return nil, unavailable("login attempts", err)
	}
	if err := strategy.TouchLastLogin(ctx, principal.PrincipalID()); err != nil {
		s.logger.WarnContext(ctx, "failed to update last login", slog.Any("error", err))
	}

	session, err := s.sessions.Issue(principal)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	tenantID, subdomain := principal.TenantScope()
	s.emit(ctx, models.LoginSucceeded{
		Realm:     realm,
		UserID:    principal.PrincipalID(),
		Email:     email,
		TenantID:  tenantID,
		SessionID: session.ID,
		IPAddress: in.ClientIP,
		UserAgent: in.UserAgent,
	})

	return &LoginResult{
		Realm:   realm,
		Session: session,
		User: UserSummary{
			ID:        principal.PrincipalID(),
			Email:     principal.PrincipalEmail(),
			FullName:  principal.PrincipalName(),
			Role:      principal.PrincipalRole(),
			TenantID:  tenantID,
			Subdomain: subdomain,
		},
		RedirectURL: strategy.RedirectURL(principal),
	}, nil
}

func validateLoginInput(realm models.Realm, email string, in LoginInput) error {
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "is required"
	}
	if in.Password == "" {
		fields["password"] = "is required"
	}
	if realm == models.RealmTenant && strings.TrimSpace(in.Subdomain) == "" {
		fields["subdomain"] = "is required"
	}
	if len(fields) > 0 {
		return &models.ValidationError{Fields: fields}
	}
	return nil
}

// recordFailure counts one failed attempt. The attempt that reaches the threshold is
// the one that locks the account; principal is nil when the identity does not exist.
func (s *AuthService) recordFailure(ctx context.Context, realm models.Realm, email string, principal models.Principal, reason string, in LoginInput) error {
	counter, err := s.attempts.RecordFailure(ctx, realm, email, s.cfg.LockThreshold, s.cfg.LockDuration)
	if err != nil {
		return unavailable("login attempts", err)
	}

	if counter.FailedCount >= s.cfg.LockThreshold && counter.LockedUntil != nil {
		if counter.FailedCount == s.cfg.LockThreshold {
			s.onNewlyLocked(ctx, realm, email, principal, *counter.LockedUntil, in)
		}
		return &models.AccountLockedError{LockedUntil: *counter.LockedUntil}
	}

	remaining := s.cfg.LockThreshold - counter.FailedCount
	s.emit(ctx, models.LoginFailed{
		Realm:             realm,
		Email:             email,
		Reason:            reason,
		RemainingAttempts: remaining,
		IPAddress:         in.ClientIP,
		UserAgent:         in.UserAgent,
	})
	return &models.InvalidCredentialsError{RemainingAttempts: remaining}
}

func (s *AuthService) onNewlyLocked(ctx context.Context, realm models.Realm, email string, principal models.Principal, until time.Time, in LoginInput) {
	s.logger.WarnContext(ctx, "account locked",
		slog.String("realm", string(realm)),
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.Time("locked_until", until),
	)
	s.emit(ctx, models.AccountLocked{Realm: realm, Email: email, LockedUntil: until, IPAddress: in.ClientIP})

	if principal == nil || s.mailer == nil {
		return
	}
	to := principal.PrincipalEmail()
	s.dispatch(ctx, "email.account_locked", func(ctx context.Context) error {
		return s.mailer.SendAccountLocked(ctx, to, realm, until)
	})
}

// Logout revokes the session. Tokens that are invalid, expired, already revoked or
// from another realm are accepted silently.
func (s *AuthService) Logout(ctx context.Context, realm models.Realm, token string) error {
	claims, err := s.sessions.Parse(token)
	if err != nil || claims.Realm != realm {
		return nil
	}

	if err := s.revocations.Revoke(ctx, claims.ID, claims.Realm, claims.UserID, claims.ExpiresAt.Time); err != nil {
		return unavailable("session revocation", err)
	}

	s.emit(ctx, models.LoggedOut{Realm: realm, UserID: claims.UserID, TenantID: claims.TenantID, SessionID: claims.ID})
	return nil
}

// ValidateSession checks signature, expiry, realm, revocation and, for tenant sessions,
// the tenant's status. Store failures return ErrServiceUnavailable.
func (s *AuthService) ValidateSession(ctx context.Context, token string, realm models.Realm) (*models.SessionClaims, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ValidateTimeout)
	defer cancel()

	claims, err := s.sessions.Parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Realm != realm {
		return nil, fmt.Errorf("%w: %w", models.ErrUnauthorized, models.ErrRealmMismatch)
	}

	strategy, ok := s.realms[realm]
	if !ok {
		return nil, fmt.Errorf("%w: realm %s not served", models.ErrUnauthorized, realm)
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, unavailable("session revocation", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: %w", models.ErrUnauthorized, models.ErrSessionRevoked)
	}

	if err := strategy.CheckSession(ctx, claims); err != nil {
		if errors.Is(err, models.ErrUnauthorized) || errors.Is(err, models.ErrTenantInactive) {
			return nil, err
		}
		return nil, unavailable("session check", err)
	}
	return claims, nil
}

func (s *AuthService) emit(ctx context.Context, evt models.AuditEvent) {
	if s.auditor != nil {
		s.auditor.Emit(ctx, evt)
	}
}

func (s *AuthService) dispatch(ctx context.Context, name string, task Task) {
	if s.dispatcher != nil {
		s.dispatcher.Go(name, task)
		return
	}
	if err := task(context.WithoutCancel(ctx)); err != nil {
		s.logger.WarnContext(ctx, "side effect failed", slog.String("task", name), slog.Any("error", err))
	}
}

func (s *AuthService) observe(realm models.Realm, err error) {
	if s.observer == nil {
		return
	}
	var (
		locked *models.AccountLockedError
		rl     *models.RateLimitError
	)
	outcome := LoginOutcomeError
	switch {
	case err == nil:
		outcome = LoginOutcomeSuccess
	case errors.As(err, &rl):
		outcome = LoginOutcomeRateLimited
	case errors.As(err, &locked):
		outcome = LoginOutcomeLocked
	case errors.Is(err, models.ErrInvalidCredentials):
		outcome = LoginOutcomeInvalid
	case errors.Is(err, models.ErrAccountDeactivated), errors.Is(err, models.ErrTenantInactive):
		outcome = LoginOutcomeInactive
	}
	s.observer.ObserveLogin(realm, outcome)
}
