package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Audit event kinds
const (
	AuditKindLoginSucceeded      = "login_succeeded"
	AuditKindLoginFailed         = "login_failed"
	AuditKindAccountLocked       = "account_locked"
	AuditKindLoggedOut           = "logged_out"
	AuditKindTenantRegistered    = "tenant_registered"
	AuditKindTenantStatusChanged = "tenant_status_changed"
)

// AuditEvent is the closed set of security events the platform records.
// Only types in this file implement it.
type AuditEvent interface {
	Kind() string
	Envelope() AuditEnvelope
	auditEvent()
}

// AuditEnvelope holds the columns shared by every audit row.
type AuditEnvelope struct {
	Realm     Realm
	ActorID   string
	TenantID  string
	Success   bool
	IPAddress string
	UserAgent string
}

type LoginSucceeded struct {
	Realm     Realm  `json:"realm"`
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	TenantID  string `json:"tenant_id,omitempty"`
	SessionID string `json:"session_id"`
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

func (LoginSucceeded) Kind() string { return AuditKindLoginSucceeded }
func (LoginSucceeded) auditEvent()  {}
func (e LoginSucceeded) Envelope() AuditEnvelope {
	return AuditEnvelope{Realm: e.Realm, ActorID: e.UserID, TenantID: e.TenantID, Success: true, IPAddress: e.IPAddress, UserAgent: e.UserAgent}
}

type LoginFailed struct {
	Realm             Realm  `json:"realm"`
	Email             string `json:"email"`
	Reason            string `json:"reason"`
	RemainingAttempts int    `json:"remaining_attempts,omitempty"`
	IPAddress         string `json:"ip_address,omitempty"`
	UserAgent         string `json:"user_agent,omitempty"`
}

func (LoginFailed) Kind() string { return AuditKindLoginFailed }
func (LoginFailed) auditEvent()  {}
func (e LoginFailed) Envelope() AuditEnvelope {
	return AuditEnvelope{Realm: e.Realm, IPAddress: e.IPAddress, UserAgent: e.UserAgent}
}

type AccountLocked struct {
	Realm       Realm     `json:"realm"`
	Email       string    `json:"email"`
	LockedUntil time.Time `json:"locked_until"`
	IPAddress   string    `json:"ip_address,omitempty"`
}

func (AccountLocked) Kind() string { return AuditKindAccountLocked }
func (AccountLocked) auditEvent()  {}
func (e AccountLocked) Envelope() AuditEnvelope {
	return AuditEnvelope{Realm: e.Realm, IPAddress: e.IPAddress}
}

type LoggedOut struct {
	Realm     Realm  `json:"realm"`
	UserID    string `json:"user_id"`
	TenantID  string `json:"tenant_id,omitempty"`
	SessionID string `json:"session_id"`
}

func (LoggedOut) Kind() string { return AuditKindLoggedOut }
func (LoggedOut) auditEvent()  {}
func (e LoggedOut) Envelope() AuditEnvelope {
	return AuditEnvelope{Realm: e.Realm, ActorID: e.UserID, TenantID: e.TenantID, Success: true}
}

type TenantRegistered struct {
	TenantID   string `json:"tenant_id"`
	Subdomain  string `json:"subdomain"`
	OwnerID    string `json:"owner_id"`
	OwnerEmail string `json:"owner_email"`
}

func (TenantRegistered) Kind() string { return AuditKindTenantRegistered }
func (TenantRegistered) auditEvent()  {}
func (e TenantRegistered) Envelope() AuditEnvelope {
	return AuditEnvelope{Realm: RealmTenant, ActorID: e.OwnerID, TenantID: e.TenantID, Success: true}
}

type TenantStatusChanged struct {
	TenantID  string       `json:"tenant_id"`
	Subdomain string       `json:"subdomain"`
	From      TenantStatus `json:"from"`
	To        TenantStatus `json:"to"`
	ActorID   string       `json:"actor_id"`
}

func (TenantStatusChanged) Kind() string { return AuditKindTenantStatusChanged }
func (TenantStatusChanged) auditEvent()  {}
func (e TenantStatusChanged) Envelope() AuditEnvelope {
	return AuditEnvelope{Realm: RealmPlatform, ActorID: e.ActorID, TenantID: e.TenantID, Success: true}
}

// AuditLog is one persisted audit row. Payload is the JSON form of the event.
type AuditLog struct {
	ID        uuid.UUID       `db:"id"`
	EventType string          `db:"event_type"`
	Realm     *string         `db:"realm"`
	ActorID   *string         `db:"actor_id"`
	TenantID  *string         `db:"tenant_id"`
	Success   bool            `db:"success"`
	IPAddress *string         `db:"ip_address"`
	UserAgent *string         `db:"user_agent"`
	Payload   json.RawMessage `db:"payload"`
	CreatedAt time.Time       `db:"created_at"`
}

// NewAuditLog flattens an event into a row.
func NewAuditLog(evt AuditEvent, at time.Time) (*AuditLog, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", evt.Kind(), err)
	}
	env := evt.Envelope()
	return &AuditLog{
		ID:        uuid.New(),
		EventType: evt.Kind(),
		Realm:     optional(string(env.Realm)),
		ActorID:   optional(env.ActorID),
		TenantID:  optional(env.TenantID),
		Success:   env.Success,
		IPAddress: optional(env.IPAddress),
		UserAgent: optional(env.UserAgent),
		Payload:   payload,
		CreatedAt: at,
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
