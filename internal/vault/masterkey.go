package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// MasterKey wraps and unwraps per-record data keys. The master key material
// itself never crosses this boundary; implementations hold it in an HSM or
// in process memory.
type MasterKey interface {
	// ID identifies the key so records can name the master that wrapped
	// their data key.
	ID() string
	Wrap(ctx context.Context, dataKey []byte) ([]byte, error)
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)
}

// LocalMasterKey is an in-process AES-256-GCM master key for development and
// tests. Production deployments use the KMS-backed implementation.
type LocalMasterKey struct {
	id  string
	gcm cipher.AEAD
}

// NewLocalMasterKey builds a LocalMasterKey from a base64-encoded 32-byte
// key.
func NewLocalMasterKey(id, base64Key string) (*LocalMasterKey, error) {
	keyBytes, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, fmt.Errorf("invalid master key format: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes (256 bits)")
	}
	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	if id == "" {
		id = "local"
	}
	return &LocalMasterKey{id: id, gcm: gcm}, nil
}

func (k *LocalMasterKey) ID() string { return k.id }

func (k *LocalMasterKey) Wrap(ctx context.Context, dataKey []byte) ([]byte, error) {
	nonce := make([]byte, k.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return k.gcm.Seal(nonce, nonce, dataKey, nil), nil
}

func (k *LocalMasterKey) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	nonceSize := k.gcm.NonceSize()
	if len(wrapped) < nonceSize {
		return nil, fmt.Errorf("wrapped key too short")
	}
	nonce, sealed := wrapped[:nonceSize], wrapped[nonceSize:]
	dataKey, err := k.gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to unwrap data key: %w", err)
	}
	return dataKey, nil
}
