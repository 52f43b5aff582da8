package token

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"time"

	"github.com/google/uuid"

	"trading-platform/authcore/internal/autherr"
)

// SigningKey is one RSA key pair in the signing-key lifecycle. A key is
// active while RetiredAt is nil; after retirement it stays valid for
// verification for the store's grace window, then is rejected.
type SigningKey struct {
	ID        string
	Private   *rsa.PrivateKey
	CreatedAt time.Time
	RetiredAt *time.Time
}

// GenerateSigningKey creates a new RSA-2048 key pair with a fresh key id.
func GenerateSigningKey() (*SigningKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &SigningKey{
		ID:        uuid.New().String(),
		Private:   priv,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// KeyStore abstracts signing-key state: exactly one active key, zero or more
// retired keys still valid for verification within the grace window.
type KeyStore interface {
	// Active returns the current signing key, or autherr.ErrKeyUnavailable
	// when none is loaded.
	Active() (*SigningKey, error)
	// VerificationKey returns the public key for kid if the key is active or
	// retired within the grace window; autherr.ErrKeyUnavailable otherwise.
	VerificationKey(kid string) (*rsa.PublicKey, error)
	// Append stores key as the new active key and demotes the previous active
	// key to retired (verify-only).
	Append(key *SigningKey) error
	// VerificationKeys enumerates every key currently valid for verification,
	// newest first. Used to build the JWKS.
	VerificationKeys() []*SigningKey
}

// MemoryKeyStore is an in-memory KeyStore. Keys are long-lived, not
// per-request, so in-memory state with periodic rotation is sufficient for a
// single issuer instance.
type MemoryKeyStore struct {
	mu    sync.RWMutex
	keys  []*SigningKey // newest first; keys[0] is active when RetiredAt == nil
	grace time.Duration
	nowF  func() time.Time
}

// NewMemoryKeyStore returns a KeyStore that keeps retired keys verifiable for
// the given grace window.
func NewMemoryKeyStore(grace time.Duration) *MemoryKeyStore {
	return &MemoryKeyStore{grace: grace, nowF: func() time.Time { return time.Now().UTC() }}
}

// Active returns the newest non-retired key.
func (s *MemoryKeyStore) Active() (*SigningKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.keys) == 0 || s.keys[0].RetiredAt != nil {
		return nil, autherr.ErrKeyUnavailable
	}
	return s.keys[0], nil
}

// Append makes key the active key. The previously active key is demoted to
// retired at the current instant; tokens signed under it keep verifying until
// the grace window elapses.
func (s *MemoryKeyStore) Append(key *SigningKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowF()
	if len(s.keys) > 0 && s.keys[0].RetiredAt == nil {
		s.keys[0].RetiredAt = &now
	}
	s.keys = append([]*SigningKey{key}, s.keys...)
	s.dropExpiredLocked(now)
	return nil
}

// VerificationKey resolves kid to a public key if the key is still inside its
// verification lifetime.
func (s *MemoryKeyStore) VerificationKey(kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.nowF()
	for _, k := range s.keys {
		if k.ID != kid {
			continue
		}
		if s.verifiableLocked(k, now) {
			return &k.Private.PublicKey, nil
		}
		break
	}
	return nil, autherr.ErrKeyUnavailable
}

// VerificationKeys returns every key still valid for verification, newest first.
func (s *MemoryKeyStore) VerificationKeys() []*SigningKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.nowF()
	out := make([]*SigningKey, 0, len(s.keys))
	for _, k := range s.keys {
		if s.verifiableLocked(k, now) {
			out = append(out, k)
		}
	}
	return out
}

func (s *MemoryKeyStore) verifiableLocked(k *SigningKey, now time.Time) bool {
	if k.RetiredAt == nil {
		return true
	}
	return now.Sub(*k.RetiredAt) <= s.grace
}

func (s *MemoryKeyStore) dropExpiredLocked(now time.Time) {
	kept := s.keys[:0]
	for _, k := range s.keys {
		if s.verifiableLocked(k, now) {
			kept = append(kept, k)
		}
	}
	s.keys = kept
}
