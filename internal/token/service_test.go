package token

import (
	"errors"
	"testing"
	"time"

	"trading-platform/authcore/internal/autherr"
)

func newTestService(t *testing.T, grace time.Duration) (*Service, *MemoryKeyStore) {
	t.Helper()
	keys := NewMemoryKeyStore(grace)
	s := NewService(keys, "authcore", "trading-platform", 15*time.Minute, 336*time.Hour)
	if err := s.RotateSigningKey(); err != nil {
		t.Fatalf("RotateSigningKey: %v", err)
	}
	return s, keys
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	s, _ := newTestService(t, time.Hour)

	signed, expiresAt, err := s.IssueAccessToken(IssueRequest{
		Subject:      "user-1",
		SessionID:    "sess-1",
		Scopes:       []string{"platform"},
		Roles:        []string{"trader"},
		AccountIDs:   []string{"acct-100"},
		MFASatisfied: true,
	})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expiresAt in the past: %v", expiresAt)
	}

	claims, err := s.VerifyAccessToken(signed)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.Subject != "user-1" || claims.SessionID != "sess-1" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if !claims.MFASatisfied {
		t.Fatal("MFASatisfied not carried")
	}
	if !claims.HasScope("platform") || claims.HasScope("credentials:read") {
		t.Fatalf("scope check wrong: %v", claims.Scopes)
	}
}

func TestVerifyRejectsAtExactExpiry(t *testing.T) {
	s, _ := newTestService(t, time.Hour)
	issuedAt := time.Now().UTC()
	s.nowF = func() time.Time { return issuedAt }

	signed, expiresAt, err := s.IssueAccessToken(IssueRequest{Subject: "user-1", SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	// One second before expiry: accepted.
	s.nowF = func() time.Time { return expiresAt.Add(-time.Second) }
	if _, err := s.VerifyAccessToken(signed); err != nil {
		t.Fatalf("verify before expiry: %v", err)
	}

	// At the expiry instant: rejected.
	s.nowF = func() time.Time { return expiresAt }
	if _, err := s.VerifyAccessToken(signed); !errors.Is(err, autherr.ErrExpired) {
		t.Fatalf("verify at expiry: got %v, want ErrExpired", err)
	}
}

func TestIntrospect(t *testing.T) {
	s, _ := newTestService(t, time.Hour)

	signed, expiresAt, err := s.IssueAccessToken(IssueRequest{Subject: "user-1", SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	ins := s.Introspect(signed)
	if !ins.Active || ins.Claims == nil || ins.Claims.Subject != "user-1" {
		t.Fatalf("introspection of valid token: %+v", ins)
	}

	if ins := s.Introspect("not-a-token"); ins.Active || ins.Claims != nil {
		t.Fatalf("introspection of garbage: %+v", ins)
	}

	// Inactive past expiry, with no claims leaked.
	s.nowF = func() time.Time { return expiresAt }
	if ins := s.Introspect(signed); ins.Active || ins.Claims != nil {
		t.Fatalf("introspection at expiry: %+v", ins)
	}
}

func TestVerifyAfterRotationWithinGrace(t *testing.T) {
	s, _ := newTestService(t, time.Hour)

	signed, _, err := s.IssueAccessToken(IssueRequest{Subject: "user-1", SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if err := s.RotateSigningKey(); err != nil {
		t.Fatalf("RotateSigningKey: %v", err)
	}
	if _, err := s.VerifyAccessToken(signed); err != nil {
		t.Fatalf("verify under retired key within grace: %v", err)
	}
}

func TestVerifyRejectsRetiredKeyPastGrace(t *testing.T) {
	keys := NewMemoryKeyStore(time.Minute)
	s := NewService(keys, "authcore", "trading-platform", 15*time.Minute, 336*time.Hour)

	base := time.Now().UTC()
	keys.nowF = func() time.Time { return base }
	s.nowF = func() time.Time { return base }
	if err := s.RotateSigningKey(); err != nil {
		t.Fatalf("RotateSigningKey: %v", err)
	}

	signed, _, err := s.IssueAccessToken(IssueRequest{Subject: "user-1", SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if err := s.RotateSigningKey(); err != nil {
		t.Fatalf("second rotation: %v", err)
	}

	// Past the grace window the retired key no longer verifies, even though
	// the token itself has not expired.
	later := base.Add(2 * time.Minute)
	keys.nowF = func() time.Time { return later }
	s.nowF = func() time.Time { return later }
	if _, err := s.VerifyAccessToken(signed); err == nil {
		t.Fatal("expected verification failure past grace window")
	}
}

func TestIssueWithoutKey(t *testing.T) {
	keys := NewMemoryKeyStore(time.Hour)
	s := NewService(keys, "authcore", "trading-platform", 15*time.Minute, 336*time.Hour)
	if _, _, err := s.IssueAccessToken(IssueRequest{Subject: "user-1"}); !errors.Is(err, autherr.ErrKeyUnavailable) {
		t.Fatalf("got %v, want ErrKeyUnavailable", err)
	}
}

func TestVerifyRejectsWrongIssuerAudience(t *testing.T) {
	s, keys := newTestService(t, time.Hour)
	signed, _, err := s.IssueAccessToken(IssueRequest{Subject: "user-1", SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	other := NewService(keys, "someone-else", "trading-platform", 15*time.Minute, 336*time.Hour)
	if _, err := other.VerifyAccessToken(signed); err == nil {
		t.Fatal("expected issuer mismatch rejection")
	}
	other = NewService(keys, "authcore", "other-audience", 15*time.Minute, 336*time.Hour)
	if _, err := other.VerifyAccessToken(signed); err == nil {
		t.Fatal("expected audience mismatch rejection")
	}
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	s, _ := newTestService(t, time.Hour)
	jti, err := NewJTI()
	if err != nil {
		t.Fatalf("NewJTI: %v", err)
	}
	signed, _, err := s.IssueRefreshToken("sess-1", "user-1", jti)
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}
	claims, err := s.VerifyRefreshToken(signed)
	if err != nil {
		t.Fatalf("VerifyRefreshToken: %v", err)
	}
	if claims.ID != jti || claims.SessionID != "sess-1" || claims.Subject != "user-1" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestJWKSListsVerifiableKeys(t *testing.T) {
	s, _ := newTestService(t, time.Hour)
	if err := s.RotateSigningKey(); err != nil {
		t.Fatalf("RotateSigningKey: %v", err)
	}

	set, err := s.JWKS()
	if err != nil {
		t.Fatalf("JWKS: %v", err)
	}
	if len(set.Keys) != 2 {
		t.Fatalf("got %d keys, want 2 (active + retired in grace)", len(set.Keys))
	}
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" || k.N == "" || k.E == "" {
			t.Fatalf("incomplete JWK: %+v", k)
		}
	}
}
