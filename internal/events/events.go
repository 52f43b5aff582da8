// Package events carries the core's event-bus contracts: security events
// produced for out-of-band user notification, and permission-change events
// consumed to invalidate cached authorization decisions.
package events

import "time"

// Security event types.
const (
	TypeTokenReuse = "token_reuse"
	TypeMFALockout = "mfa_lockout"
)

// SecurityEvent is the JSON payload produced on the security topic.
type SecurityEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PermissionChange is the JSON payload of the permission-change feed. Subject
// or Resource may be empty to mean "any", mirroring the cache invalidation
// contract.
type PermissionChange struct {
	Subject    string    `json:"subject"`
	Resource   string    `json:"resource"`
	OccurredAt time.Time `json:"occurred_at"`
}
