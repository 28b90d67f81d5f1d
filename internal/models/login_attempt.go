package models

import "time"

// LoginAttemptCounter tracks consecutive failed logins for one (realm, email).
type LoginAttemptCounter struct {
	Realm        Realm      `db:"realm"`
	Email        string     `db:"email"`
	FailedCount  int        `db:"failed_count"`
	LockedUntil  *time.Time `db:"locked_until"`
	LastFailedAt time.Time  `db:"last_failed_at"`
}

// IsLocked reports whether the counter currently blocks logins.
func (c *LoginAttemptCounter) IsLocked(now time.Time) bool {
	return c != nil && c.LockedUntil != nil && now.Before(*c.LockedUntil)
}
