package cache

import (
	"strings"
	"testing"
)

func TestHashString(t *testing.T) {
	// Deterministic
	h1 := hashString("test")
	h2 := hashString("test")
	if h1 != h2 {
		t.Errorf("hashString not deterministic: %q != %q", h1, h2)
	}

	// Different inputs produce different hashes
	h3 := hashString("other")
	if h1 == h3 {
		t.Error("different inputs should produce different hashes")
	}

	if len(h1) != 16 {
		t.Errorf("expected 16 hex chars, got %d", len(h1))
	}

	// Empty string is valid
	h4 := hashString("")
	if h4 == "" {
		t.Error("hash of empty string should not be empty")
	}
}

func TestTextKey_OrderAndCaseInsensitive(t *testing.T) {
	k1 := textKey([]string{"Bike", "trek"}, 5)
	k2 := textKey([]string{"trek", "bike"}, 5)
	if k1 != k2 {
		t.Errorf("expected same key regardless of order and case: %q != %q", k1, k2)
	}
}

func TestTextKey_Duplicates(t *testing.T) {
	k1 := textKey([]string{"bike", "bike"}, 5)
	k2 := textKey([]string{"bike"}, 5)
	if k1 != k2 {
		t.Errorf("expected duplicate terms to share a key: %q != %q", k1, k2)
	}
}

func TestTextKey_LimitMatters(t *testing.T) {
	if textKey([]string{"bike"}, 5) == textKey([]string{"bike"}, 10) {
		t.Error("different limits should produce different keys")
	}
}

func TestTextKey_Prefix(t *testing.T) {
	k := textKey([]string{"lamp"}, 5)
	if !strings.HasPrefix(k, textPrefix) {
		t.Errorf("expected prefix %q, got %q", textPrefix, k)
	}
	if !strings.HasPrefix(k, keyPrefix) {
		t.Errorf("expected product lookup namespace %q, got %q", keyPrefix, k)
	}
}

func TestNonNil(t *testing.T) {
	if got := nonNil(nil); got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}
