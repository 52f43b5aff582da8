package domain

import "time"

// AuditLog is one audit trail entry. Every security-relevant action in the
// core (login, refresh, reuse detection, logout, credential fetch, key
// rotation) writes one.
type AuditLog struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
