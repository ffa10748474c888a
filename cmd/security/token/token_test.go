package token

import "testing"

func TestFingerprint_UnkeyedIsSHA256(t *testing.T) {
	f := NewFingerprinter(nil)
	if f.Keyed() {
		t.Fatalf("expected unkeyed fingerprinter")
	}
	got := f.Fingerprint("a@x.com")
	if got != HashSHA256Hex("a@x.com") {
		t.Fatalf("unexpected fingerprint: %q", got)
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(got))
	}
}

func TestFingerprint_KeyedDiffersByKey(t *testing.T) {
	a := NewFingerprinter([]byte("0123456789abcdef0123456789abcdef"))
	b := NewFingerprinter([]byte("fedcba9876543210fedcba9876543210"))

	if !a.Keyed() {
		t.Fatalf("expected keyed fingerprinter")
	}
	if a.Fingerprint("a@x.com") == b.Fingerprint("a@x.com") {
		t.Fatalf("different keys must produce different fingerprints")
	}
	if a.Fingerprint("a@x.com") != a.Fingerprint("a@x.com") {
		t.Fatalf("fingerprint must be stable")
	}
	if a.Fingerprint("a@x.com") == HashSHA256Hex("a@x.com") {
		t.Fatalf("keyed fingerprint must not equal plain SHA-256")
	}
}

func TestHMACKeyFromEnv(t *testing.T) {
	t.Setenv(HMACEnvKey, "")
	if _, err := HMACKeyFromEnv(32); err != ErrHMACKeyMissing {
		t.Fatalf("expected ErrHMACKeyMissing, got %v", err)
	}
	if HMACEnabled() {
		t.Fatalf("expected HMAC disabled")
	}

	t.Setenv(HMACEnvKey, "short")
	if _, err := HMACKeyFromEnv(32); err != ErrHMACKeyTooShort {
		t.Fatalf("expected ErrHMACKeyTooShort, got %v", err)
	}

	t.Setenv(HMACEnvKey, "  0123456789abcdef0123456789abcdef  ")
	key, err := HMACKeyFromEnv(32)
	if err != nil {
		t.Fatalf("HMACKeyFromEnv: %v", err)
	}
	if string(key) != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("key not trimmed: %q", key)
	}
	if !FingerprinterFromEnv().Keyed() {
		t.Fatalf("expected keyed fingerprinter from env")
	}
}
