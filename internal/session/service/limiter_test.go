package service

import (
	"context"
	"testing"
	"time"
)

func TestAttemptWindowSlides(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAttemptStore(15 * time.Minute)
	base := time.Now().UTC()

	for i := 1; i <= 3; i++ {
		n, err := s.Record(ctx, "login:a", base.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
		if n != i {
			t.Fatalf("count = %d, want %d", n, i)
		}
	}

	// Attempts age out of the window: only the one at +3m survives at +17m.
	n, err := s.Count(ctx, "login:a", base.Add(17*time.Minute))
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count after slide = %d, want 1", n)
	}

	n, err = s.Record(ctx, "login:a", base.Add(17*time.Minute))
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2 (+3m attempt and the new one)", n)
	}
}

func TestResetClears(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAttemptStore(15 * time.Minute)
	now := time.Now().UTC()

	if _, err := s.Record(ctx, "login:a", now); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Reset(ctx, "login:a"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	n, err := s.Count(ctx, "login:a", now)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("count after reset = %d", n)
	}
}

func TestKeysIndependent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAttemptStore(15 * time.Minute)
	now := time.Now().UTC()

	if _, err := s.Record(ctx, "login:a", now); err != nil {
		t.Fatalf("Record: %v", err)
	}
	n, err := s.Count(ctx, "login:b", now)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Fatalf("cross-key count = %d", n)
	}
}
