// Package domain defines the sealed secret record.
package domain

import (
	"errors"
	"time"
)

// EncryptedSecret is one sealed record. The plaintext is encrypted with a
// per-record data key under AES-256-GCM; the data key itself is stored only
// wrapped by the master key identified by MasterKeyID.
type EncryptedSecret struct {
	ID             string
	Kind           string // e.g. "mfa-seed", "broker-credential"
	MasterKeyID    string
	WrappedDataKey []byte
	Nonce          []byte
	Ciphertext     []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks invariant fields before persistence.
func (s *EncryptedSecret) Validate() error {
	if s.ID == "" {
		return errors.New("secret: id is required")
	}
	if s.MasterKeyID == "" {
		return errors.New("secret: master key id is required")
	}
	if len(s.WrappedDataKey) == 0 || len(s.Nonce) == 0 || len(s.Ciphertext) == 0 {
		return errors.New("secret: sealed material is incomplete")
	}
	return nil
}
