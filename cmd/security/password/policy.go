package password

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// bcrypt silently ignores input past 72 bytes; refuse it instead.
const bcryptMaxBytes = 72

// Validate checks secret policy for a new digest. It does not mutate input.
func (c Config) Validate(secret string) error {
	// Count runes, not bytes, so the limits match what users type.
	n := utf8.RuneCountInString(secret)

	if n < c.Policy.MinLength || secret == "" {
		return ErrPasswordTooShort
	}
	if c.Policy.MaxLength > 0 && n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}
	if c.Algorithm == AlgorithmBcrypt && len(secret) > bcryptMaxBytes {
		return ErrPasswordTooLong
	}

	if c.Policy.RejectVeryWeak && looksVeryWeak(secret) {
		return ErrWeakPassword
	}
	return nil
}

var trivialSecrets = map[string]struct{}{
	"password":    {},
	"password123": {},
	"123456":      {},
	"123456789":   {},
	"qwerty":      {},
	"qwerty123":   {},
	"11111111":    {},
	"letmein":     {},
}

// looksVeryWeak is a minimal pattern check, not a strength estimator.
func looksVeryWeak(secret string) bool {
	s := strings.TrimSpace(secret)
	if s == "" {
		return true
	}
	if _, ok := trivialSecrets[strings.ToLower(s)]; ok {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	allSame, onlyDigits := true, true
	for _, r := range s {
		if r != first {
			allSame = false
		}
		if !unicode.IsDigit(r) {
			onlyDigits = false
		}
	}
	if allSame {
		return true
	}
	// PIN-like.
	return onlyDigits && utf8.RuneCountInString(s) < 12
}
