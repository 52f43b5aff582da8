package domain

import "time"

// Challenge is the persisted intermediate state between a password login and
// MFA completion. The login → MFA → session flow is a two-step protocol: no
// session or token family exists until the challenge is answered. The client
// holds an opaque challenge token; only its hash is stored.
type Challenge struct {
	ID                string
	UserID            string
	TokenHash         string
	DeviceFingerprint string
	IPAddress         string
	Attempts          int
	ExpiresAt         time.Time
	CreatedAt         time.Time
}
