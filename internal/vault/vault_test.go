package vault

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/rs/zerolog"

	"trading-platform/authcore/internal/audit"
	"trading-platform/authcore/internal/vault/repository"
)

func testKey(t *testing.T, id string) *LocalMasterKey {
	t.Helper()
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("rand: %v", err)
	}
	k, err := NewLocalMasterKey(id, base64.StdEncoding.EncodeToString(raw))
	if err != nil {
		t.Fatalf("NewLocalMasterKey: %v", err)
	}
	return k
}

func TestStoreFetchRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	v := New(repo, testKey(t, "k1"), audit.Nop{}, zerolog.Nop())

	plaintext := []byte("broker-api-key-material")
	id, err := v.Store(ctx, "broker-credential", plaintext)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, err := v.Fetch(ctx, id)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: %q", got)
	}

	// The stored record never contains the plaintext.
	rec, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if bytes.Contains(rec.Ciphertext, plaintext) || bytes.Contains(rec.WrappedDataKey, plaintext) {
		t.Fatal("plaintext leaked into stored record")
	}
}

func TestFetchUnknownID(t *testing.T) {
	v := New(repository.NewMemoryRepository(), testKey(t, "k1"), audit.Nop{}, zerolog.Nop())
	if _, err := v.Fetch(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for unknown id")
	}
}

func TestRotateMasterKey(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	oldKey := testKey(t, "old")
	v := New(repo, oldKey, audit.Nop{}, zerolog.Nop())

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := v.Store(ctx, "mfa-seed", []byte{byte(i)})
		if err != nil {
			t.Fatalf("Store: %v", err)
		}
		ids = append(ids, id)
	}

	v2 := New(repo, testKey(t, "new"), audit.Nop{}, zerolog.Nop())
	n, err := v2.RotateMasterKey(ctx, oldKey)
	if err != nil {
		t.Fatalf("RotateMasterKey: %v", err)
	}
	if n != 5 {
		t.Fatalf("rewrapped %d records, want 5", n)
	}

	// Everything decrypts under the new master; nothing is left on the old.
	for i, id := range ids {
		got, err := v2.Fetch(ctx, id)
		if err != nil {
			t.Fatalf("Fetch %s: %v", id, err)
		}
		if !bytes.Equal(got, []byte{byte(i)}) {
			t.Fatalf("record %s corrupted by rotation", id)
		}
	}
	left, err := repo.ListByMasterKey(ctx, "old", 0)
	if err != nil {
		t.Fatalf("ListByMasterKey: %v", err)
	}
	if len(left) != 0 {
		t.Fatalf("%d records still on old master key", len(left))
	}

	// A second run is a no-op; the per-record key id makes rotation resumable.
	n, err = v2.RotateMasterKey(ctx, oldKey)
	if err != nil {
		t.Fatalf("second rotation: %v", err)
	}
	if n != 0 {
		t.Fatalf("second rotation touched %d records", n)
	}
}

func TestLocalMasterKeyRejectsBadKey(t *testing.T) {
	if _, err := NewLocalMasterKey("k", "not-base64!!"); err == nil {
		t.Fatal("accepted invalid base64")
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := NewLocalMasterKey("k", short); err == nil {
		t.Fatal("accepted short key")
	}
}
