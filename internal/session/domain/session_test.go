package domain

import (
	"testing"
	"time"
)

func TestExpiredDualBounds(t *testing.T) {
	base := time.Now().UTC()
	absolute := 90 * 24 * time.Hour
	idle := 14 * 24 * time.Hour

	s := &Session{CreatedAt: base, LastActiveAt: base}

	if s.Expired(base.Add(time.Hour), absolute, idle) {
		t.Fatal("fresh session expired")
	}

	// Idle window elapses first when the session is untouched.
	if !s.Expired(base.Add(idle), absolute, idle) {
		t.Fatal("idle bound not enforced")
	}

	// Regular activity keeps the idle bound at bay, but the absolute bound
	// still lands.
	s.LastActiveAt = base.Add(absolute - time.Hour)
	if s.Expired(base.Add(absolute-time.Minute), absolute, idle) {
		t.Fatal("active session expired before absolute bound")
	}
	if !s.Expired(base.Add(absolute), absolute, idle) {
		t.Fatal("absolute bound not enforced despite recent activity")
	}
}

func TestActive(t *testing.T) {
	base := time.Now().UTC()
	s := &Session{CreatedAt: base, LastActiveAt: base}
	if !s.Active(base.Add(time.Hour), 90*24*time.Hour, 14*24*time.Hour) {
		t.Fatal("live session not active")
	}
	revoked := base.Add(time.Minute)
	s.RevokedAt = &revoked
	if s.Active(base.Add(time.Hour), 90*24*time.Hour, 14*24*time.Hour) {
		t.Fatal("revoked session reported active")
	}
}
