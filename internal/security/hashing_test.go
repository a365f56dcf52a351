package security

import (
	"testing"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(10)
	pin := []byte("1234")
	hash, err := h.Hash(pin)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash returned empty")
	}
	if err := h.Compare(hash, pin); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_CompareWrongSecret(t *testing.T) {
	h := NewHasher(10)
	hash, _ := h.Hash([]byte("1234"))
	if err := h.Compare(hash, []byte("4321")); err == nil {
		t.Fatal("Compare with wrong secret should fail")
	}
}

func TestHasher_Cost(t *testing.T) {
	h := NewHasher(12)
	if h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	h0 := NewHasher(0)
	if h0.Cost < 4 {
		t.Errorf("zero cost should be clamped to at least MinCost, got %d", h0.Cost)
	}
}

func TestNormalizeAnswer(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Abidjan", "abidjan"},
		{"  ABIDJAN  ", "abidjan"},
		{"marché de Cocody", "marché de cocody"},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeAnswer(c.in); got != c.want {
			t.Errorf("NormalizeAnswer(%q): want %q, got %q", c.in, c.want, got)
		}
	}
}

func TestHasher_AnswerRoundTrip(t *testing.T) {
	h := NewHasher(10)
	hash, err := h.HashAnswer("  Abidjan ")
	if err != nil {
		t.Fatalf("HashAnswer: %v", err)
	}
	// Different casing and whitespace must still verify.
	if err := h.CompareAnswer(hash, "ABIDJAN"); err != nil {
		t.Fatalf("CompareAnswer: %v", err)
	}
	if err := h.CompareAnswer(hash, "bouaké"); err == nil {
		t.Fatal("CompareAnswer with wrong answer should fail")
	}
}
