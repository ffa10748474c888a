package app

import (
	"errors"
	"fmt"

	"github.com/christine-M9/Hashing-passwords-API/cmd/security/password"
	"github.com/christine-M9/Hashing-passwords-API/cmd/security/token"
)

// ValidateSecurityConfig enforces the startup security policy.
//
// Fail fast: a misconfigured hasher or a missing audit key must stop the
// process rather than silently degrade.
func ValidateSecurityConfig(cfg Config) (password.Config, error) {
	pcfg, err := password.FromEnv()
	if err != nil {
		return password.Config{}, fmt.Errorf("security policy: password hashing: %w", err)
	}

	if !cfg.RequireAuditHMAC {
		return pcfg, nil
	}

	// Measured in bytes; the key is used as raw HMAC-SHA256 key material.
	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return password.Config{}, errors.New("security policy: CREDSTORE_REQUIRE_AUDIT_HMAC=true but CREDSTORE_AUDIT_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return password.Config{}, errors.New("security policy: CREDSTORE_REQUIRE_AUDIT_HMAC=true but CREDSTORE_AUDIT_HMAC_KEY is too short (min 32 bytes)")
		default:
			return password.Config{}, err
		}
	}
	if !token.HMACEnabled() {
		return password.Config{}, errors.New("security policy: CREDSTORE_REQUIRE_AUDIT_HMAC=true but audit fingerprints are not keyed")
	}

	return pcfg, nil
}
