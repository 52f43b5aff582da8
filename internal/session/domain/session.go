package domain

import "time"

// Session represents one authenticated device/browser instance.
type Session struct {
	ID                string
	UserID            string
	DeviceFingerprint string
	IPAddress         string
	Country           string
	CreatedAt         time.Time
	LastActiveAt      time.Time
	RevokedAt         *time.Time // nil when not revoked
}

// Expired reports whether the session has lapsed at now: the absolute
// lifetime and the inactivity window are independent bounds, whichever
// elapses first invalidates the session.
func (s *Session) Expired(now time.Time, absolute, idle time.Duration) bool {
	if now.Sub(s.CreatedAt) >= absolute {
		return true
	}
	return now.Sub(s.LastActiveAt) >= idle
}

// Active reports whether the session is neither revoked nor expired.
func (s *Session) Active(now time.Time, absolute, idle time.Duration) bool {
	return s.RevokedAt == nil && !s.Expired(now, absolute, idle)
}
