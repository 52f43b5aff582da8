package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims holds JWT claims for the access token. The token is trusted
// until it naturally expires; no revocation list is consulted on verification.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionID    string   `json:"session_id"`
	Scopes       []string `json:"scopes,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	AccountIDs   []string `json:"account_ids,omitempty"`
	MFASatisfied bool     `json:"mfa,omitempty"`
}

// HasScope reports whether the claims carry the given scope.
func (c *AccessClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// RefreshClaims holds JWT claims for the refresh token. The jti is the node
// identifier in the refresh-token family; the session id binds the family.
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
}
