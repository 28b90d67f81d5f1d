package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload of a session token. The realm claim is checked on
// every validation so a token never crosses realms.
type SessionClaims struct {
	Realm     Realm  `json:"realm"`
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TenantID  string `json:"tid,omitempty"`
	Subdomain string `json:"tsd,omitempty"`
	jwt.RegisteredClaims
}
