// Package vault stores secret material under envelope encryption: every
// record is sealed with its own AES-256-GCM data key, and the data key is
// stored only wrapped by the configured master key.
package vault

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trading-platform/authcore/internal/audit"
	"trading-platform/authcore/internal/autherr"
	"trading-platform/authcore/internal/vault/domain"
	"trading-platform/authcore/internal/vault/repository"
)

const rotateBatchSize = 100

// Vault seals, fetches, and rewraps secret records. Every Fetch is audited
// with the secret id and kind, never the plaintext.
type Vault struct {
	repo    repository.Repository
	master  MasterKey
	auditor audit.AuditLogger
	log     zerolog.Logger
	nowF    func() time.Time
}

// New returns a Vault using master for key wrapping.
func New(repo repository.Repository, master MasterKey, auditor audit.AuditLogger, log zerolog.Logger) *Vault {
	return &Vault{
		repo:    repo,
		master:  master,
		auditor: auditor,
		log:     log,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// Store seals plaintext under a fresh data key and persists the record.
// Returns the record id callers keep as their only reference.
func (v *Vault) Store(ctx context.Context, kind string, plaintext []byte) (string, error) {
	dataKey := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, dataKey); err != nil {
		return "", fmt.Errorf("generate data key: %w", err)
	}
	nonce, ciphertext, err := seal(dataKey, plaintext)
	if err != nil {
		return "", err
	}
	wrapped, err := v.master.Wrap(ctx, dataKey)
	if err != nil {
		v.log.Error().Err(err).Msg("master key wrap failed")
		return "", autherr.ErrKeyUnavailable
	}
	now := v.nowF()
	s := &domain.EncryptedSecret{
		ID:             uuid.New().String(),
		Kind:           kind,
		MasterKeyID:    v.master.ID(),
		WrappedDataKey: wrapped,
		Nonce:          nonce,
		Ciphertext:     ciphertext,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := v.repo.Create(ctx, s); err != nil {
		return "", err
	}
	return s.ID, nil
}

// Fetch unwraps the record's data key and returns the plaintext. Callers
// must not retain the plaintext beyond the operation that needed it.
func (v *Vault) Fetch(ctx context.Context, id string) ([]byte, error) {
	s, err := v.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("secret %s not found", id)
	}
	dataKey, err := v.master.Unwrap(ctx, s.WrappedDataKey)
	if err != nil {
		v.log.Error().Err(err).Str("secret_id", id).Msg("master key unwrap failed")
		return nil, autherr.ErrKeyUnavailable
	}
	plaintext, err := unseal(dataKey, s.Nonce, s.Ciphertext)
	if err != nil {
		return nil, err
	}
	v.auditor.LogEvent(ctx, "", "vault.fetch", "secret:"+id, "kind="+s.Kind)
	return plaintext, nil
}

// Delete removes a sealed record.
func (v *Vault) Delete(ctx context.Context, id string) error {
	return v.repo.Delete(ctx, id)
}

// RotateMasterKey rewraps every record still wrapped by oldMaster under the
// vault's current master key. Only the data keys are rewrapped; record
// ciphertexts are untouched. The walk is batched and keyed off each record's
// master key id, so an interrupted rotation resumes where it stopped.
// Returns the number of records rewrapped.
func (v *Vault) RotateMasterKey(ctx context.Context, oldMaster MasterKey) (int, error) {
	if oldMaster.ID() == v.master.ID() {
		return 0, fmt.Errorf("old and current master keys are the same")
	}
	total := 0
	for {
		batch, err := v.repo.ListByMasterKey(ctx, oldMaster.ID(), rotateBatchSize)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			break
		}
		for _, s := range batch {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			dataKey, err := oldMaster.Unwrap(ctx, s.WrappedDataKey)
			if err != nil {
				return total, fmt.Errorf("unwrap secret %s: %w", s.ID, err)
			}
			rewrapped, err := v.master.Wrap(ctx, dataKey)
			if err != nil {
				return total, fmt.Errorf("rewrap secret %s: %w", s.ID, err)
			}
			s.MasterKeyID = v.master.ID()
			s.WrappedDataKey = rewrapped
			s.UpdatedAt = v.nowF()
			if err := v.repo.Rewrap(ctx, s); err != nil {
				return total, err
			}
			total++
		}
	}
	v.log.Info().Int("records", total).Str("from", oldMaster.ID()).Str("to", v.master.ID()).Msg("master key rotation complete")
	return total, nil
}

func seal(dataKey, plaintext []byte) (nonce, ciphertext []byte, err error) {
	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, gcm.Seal(nil, nonce, plaintext, nil), nil
}

func unseal(dataKey, nonce, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}
