package models

import (
	"strings"
	"time"
)

// Realm identifies one of the two disjoint identity universes.
type Realm string

const (
	RealmPlatform Realm = "platform"
	RealmTenant   Realm = "tenant"
)

// ParseRealm validates a realm path segment.
func ParseRealm(s string) (Realm, error) {
	switch Realm(strings.ToLower(strings.TrimSpace(s))) {
	case RealmPlatform:
		return RealmPlatform, nil
	case RealmTenant:
		return RealmTenant, nil
	default:
		return "", NewValidationError("realm", "must be one of: platform tenant")
	}
}

func (r Realm) String() string { return string(r) }

// Platform roles
const (
	PlatformRoleOwner = "owner"
	PlatformRoleAdmin = "admin"
	PlatformRoleSales = "sales"
)

// Tenant roles
const (
	TenantRoleOwner = "owner"
	TenantRoleAdmin = "admin"
	TenantRoleStaff = "staff"
)

// Principal is the capability view the auth service needs from either identity variant.
// PlatformUser and TenantUser stay distinct types; neither converts into the other.
type Principal interface {
	PrincipalID() string
	PrincipalEmail() string
	PrincipalName() string
	PrincipalRole() string
	PrincipalRealm() Realm
	IsActive() bool
	CredentialHash() string
	// TenantScope returns the tenant binding; empty for platform identities.
	TenantScope() (tenantID, subdomain string)
}

// PlatformUser is an operator of the platform itself.
type PlatformUser struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Role         string // owner, admin, sales
	Active       bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *PlatformUser) PrincipalID() string           { return u.ID }
func (u *PlatformUser) PrincipalEmail() string        { return u.Email }
func (u *PlatformUser) PrincipalName() string         { return u.FullName }
func (u *PlatformUser) PrincipalRole() string         { return u.Role }
func (u *PlatformUser) PrincipalRealm() Realm         { return RealmPlatform }
func (u *PlatformUser) IsActive() bool                { return u.Active }
func (u *PlatformUser) CredentialHash() string        { return u.PasswordHash }
func (u *PlatformUser) TenantScope() (string, string) { return "", "" }

// TenantUser is a business user scoped to exactly one tenant.
type TenantUser struct {
	ID           string
	TenantID     string
	Subdomain    string // joined from tenants, not stored on the row
	Email        string
	FullName     string
	PasswordHash string
	Role         string // owner, admin, staff
	Active       bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u *TenantUser) PrincipalID() string           { return u.ID }
func (u *TenantUser) PrincipalEmail() string        { return u.Email }
func (u *TenantUser) PrincipalName() string         { return u.FullName }
func (u *TenantUser) PrincipalRole() string         { return u.Role }
func (u *TenantUser) PrincipalRealm() Realm         { return RealmTenant }
func (u *TenantUser) IsActive() bool                { return u.Active }
func (u *TenantUser) CredentialHash() string        { return u.PasswordHash }
func (u *TenantUser) TenantScope() (string, string) { return u.TenantID, u.Subdomain }
