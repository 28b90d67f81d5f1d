package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/biasharahub/biashara/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidSession covers every reason a token fails to parse or verify.
var ErrInvalidSession = fmt.Errorf("%w: invalid session", models.ErrUnauthorized)

// IssuedSession is a freshly signed session token.
type IssuedSession struct {
	Token     string
	ID        string // jti
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// SessionManager signs and verifies HS256 session tokens.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue creates a session bound to the principal's realm, role and tenant.
func (m *SessionManager) Issue(p models.Principal) (*IssuedSession, error) {
	tenantID, subdomain := p.TenantScope()
	return m.sign(models.SessionClaims{
		Realm:     p.PrincipalRealm(),
		UserID:    p.PrincipalID(),
		Email:     p.PrincipalEmail(),
		Role:      p.PrincipalRole(),
		TenantID:  tenantID,
		Subdomain: subdomain,
	})
}

// Reissue signs a new token carrying the same identity with a fresh lifetime.
func (m *SessionManager) Reissue(c *models.SessionClaims) (*IssuedSession, error) {
	return m.sign(models.SessionClaims{
		Realm:     c.Realm,
		UserID:    c.UserID,
		Email:     c.Email,
		Role:      c.Role,
		TenantID:  c.TenantID,
		Subdomain: c.Subdomain,
	})
}

func (m *SessionManager) sign(claims models.SessionClaims) (*IssuedSession, error) {
	now := m.now().Truncate(time.Second)
	exp := now.Add(m.ttl)
	jti := uuid.New().String()

	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}
	return &IssuedSession{Token: token, ID: jti, IssuedAt: now, ExpiresAt: exp}, nil
}

// Parse verifies signature and expiry. It does not check revocation or tenant status.
func (m *SessionManager) Parse(token string) (*models.SessionClaims, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	claims := &models.SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: expired", ErrInvalidSession)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	if claims.ID == "" || claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing identity claims", ErrInvalidSession)
	}
	switch claims.Realm {
	case models.RealmPlatform:
	case models.RealmTenant:
		if claims.TenantID == "" || claims.Subdomain == "" {
			return nil, fmt.Errorf("%w: tenant session without tenant", ErrInvalidSession)
		}
	default:
		return nil, fmt.Errorf("%w: unknown realm %q", ErrInvalidSession, claims.Realm)
	}
	return claims, nil
}

// ShouldRefresh reports whether less than half of the session lifetime remains.
func (m *SessionManager) ShouldRefresh(c *models.SessionClaims) bool {
	if c.ExpiresAt == nil || c.IssuedAt == nil {
		return false
	}
	lifetime := c.ExpiresAt.Sub(c.IssuedAt.Time)
	return c.ExpiresAt.Sub(m.now()) < lifetime/2
}
