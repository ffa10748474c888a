package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the fingerprint HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "CREDSTORE_AUDIT_HMAC_KEY"
)

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// HMACKeyFromEnv returns the configured HMAC key bytes (trimmed), enforcing a minimum byte length.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}

// HMACEnabled reports whether the env key is present (non-empty after trim).
func HMACEnabled() bool {
	return strings.TrimSpace(os.Getenv(HMACEnvKey)) != ""
}

// Fingerprinter derives stable pseudonyms for log correlation.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter returns a keyed fingerprinter, or a plain SHA-256 one when key is empty.
func NewFingerprinter(key []byte) Fingerprinter {
	return Fingerprinter{key: append([]byte(nil), key...)}
}

// FingerprinterFromEnv builds a Fingerprinter from CREDSTORE_AUDIT_HMAC_KEY.
func FingerprinterFromEnv() Fingerprinter {
	return NewFingerprinter([]byte(strings.TrimSpace(os.Getenv(HMACEnvKey))))
}

// Keyed reports whether fingerprints are HMAC-based.
func (f Fingerprinter) Keyed() bool { return len(f.key) > 0 }

// Fingerprint returns the 64-char hex pseudonym of s.
func (f Fingerprinter) Fingerprint(s string) string {
	if len(f.key) == 0 {
		return HashSHA256Hex(s)
	}
	return HashHMACSHA256Hex(s, f.key)
}
