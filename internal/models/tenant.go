package models

import (
	"regexp"
	"strings"
	"time"
)

// TenantStatus is the subscription state of a tenant.
type TenantStatus string

const (
	TenantStatusTrial     TenantStatus = "trial"
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusCancelled TenantStatus = "cancelled"
)

// ParseTenantStatus validates a status string.
func ParseTenantStatus(s string) (TenantStatus, error) {
	switch st := TenantStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case TenantStatusTrial, TenantStatusActive, TenantStatusSuspended, TenantStatusCancelled:
		return st, nil
	}
	return "", NewValidationError("status", "must be one of: trial active suspended cancelled")
}

// Tenant is one customer business account.
type Tenant struct {
	ID                    string
	Subdomain             string
	BusinessName          string
	BusinessType          string
	Location              string
	Services              []string
	WhatsAppPhoneNumberID *string
	Status                TenantStatus
	TrialEndsAt           *time.Time
	DeletedAt             *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// AllowsSessions reports whether users of this tenant may hold sessions.
func (t *Tenant) AllowsSessions(now time.Time) bool {
	if t.DeletedAt != nil {
		return false
	}
	switch t.Status {
	case TenantStatusActive:
		return true
	case TenantStatusTrial:
		return t.TrialEndsAt == nil || now.Before(*t.TrialEndsAt)
	default:
		return false
	}
}

var subdomainPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`)

// Subdomains that collide with platform hostnames.
var reservedSubdomains = map[string]bool{
	"www":      true,
	"app":      true,
	"api":      true,
	"admin":    true,
	"platform": true,
	"mail":     true,
	"static":   true,
	"assets":   true,
	"auth":     true,
}

// NormalizeSubdomain lower-cases and trims a subdomain.
func NormalizeSubdomain(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidateSubdomain enforces lowercase alnum+hyphen, 3-50 chars, not reserved.
func ValidateSubdomain(s string) error {
	if len(s) < 3 || len(s) > 50 {
		return NewValidationError("subdomain", "must be between 3 and 50 characters")
	}
	if !subdomainPattern.MatchString(s) {
		return NewValidationError("subdomain", "may only contain lowercase letters, digits and inner hyphens")
	}
	if reservedSubdomains[s] {
		return NewValidationError("subdomain", "is reserved")
	}
	return nil
}

// IsReservedSubdomain reports whether a host label never identifies a tenant.
func IsReservedSubdomain(s string) bool {
	return reservedSubdomains[s]
}
