package security

import "testing"

func TestHashAndCompare(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash([]byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := h.Compare(hash, []byte("correct horse battery staple")); err != nil {
		t.Fatalf("Compare matching: %v", err)
	}
	if err := h.Compare(hash, []byte("wrong")); err == nil {
		t.Fatal("Compare accepted wrong password")
	}
}

func TestHasherCostBounds(t *testing.T) {
	if NewHasher(0).Cost <= 0 {
		t.Fatal("zero cost not defaulted")
	}
	if c := NewHasher(99).Cost; c > 31 {
		t.Fatalf("cost %d out of range", c)
	}
}

func TestTokenHash(t *testing.T) {
	h1 := HashToken("token-a")
	h2 := HashToken("token-a")
	if h1 != h2 {
		t.Fatal("hash not deterministic")
	}
	if HashToken("token-b") == h1 {
		t.Fatal("distinct tokens collide")
	}
}
