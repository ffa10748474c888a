package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	argon2Version = 19 // argon2.Version is 0x13 (19)

	// bcrypt digests above this cost are refused during Verify.
	maxBcryptVerifyCost = 16
)

// Hasher produces and verifies self-describing secret digests.
// It is safe for concurrent use.
type Hasher struct {
	cfg Config
}

// New validates cfg and returns a Hasher.
func New(cfg Config) (*Hasher, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return &Hasher{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (h *Hasher) Config() Config { return h.cfg }

// Hash applies the policy, draws a fresh random salt, and returns the encoded digest.
func (h *Hasher) Hash(secret string) (string, error) {
	if err := h.cfg.Validate(secret); err != nil {
		return "", err
	}
	return h.digest(secret)
}

// TimingDigest returns a digest of a random secret under the configured
// algorithm and cost, bypassing the policy. Verifying against it costs the
// same as verifying a real account.
func (h *Hasher) TimingDigest() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("timing secret: %w", err)
	}
	return h.digest(base64.RawStdEncoding.EncodeToString(buf))
}

func (h *Hasher) digest(secret string) (string, error) {
	if h.cfg.Algorithm == AlgorithmBcrypt {
		out, err := bcrypt.GenerateFromPassword([]byte(secret), h.cfg.BcryptCost)
		if err != nil {
			if errors.Is(err, bcrypt.ErrPasswordTooLong) {
				return "", ErrPasswordTooLong
			}
			return "", fmt.Errorf("bcrypt: %w", err)
		}
		return string(out), nil
	}
	return h.hashArgon2id(secret)
}

func (h *Hasher) hashArgon2id(secret string) (string, error) {
	p := h.cfg.Params

	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		p.MemoryKiB,
		p.Iterations,
		p.Parallelism,
		b64.EncodeToString(salt),
		b64.EncodeToString(key),
	), nil
}

// Verify recomputes the digest of secret with the parameters embedded in digest.
// Returns (true, nil) for a match, (false, nil) for a mismatch,
// and (false, ErrMalformedDigest) when digest cannot be decoded.
func (h *Hasher) Verify(secret, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return h.verifyArgon2id(secret, digest)
	case isBcryptDigest(digest):
		return verifyBcrypt(secret, digest)
	default:
		return false, ErrMalformedDigest
	}
}

func (h *Hasher) verifyArgon2id(secret, digest string) (bool, error) {
	params, salt, expected, err := decodeArgon2id(digest)
	if err != nil {
		return false, err
	}

	// A stored digest must not be able to demand far more work than we would spend hashing.
	if !withinReasonableBounds(params, h.cfg.Params) {
		return false, ErrMalformedDigest
	}

	key := argon2.IDKey(
		[]byte(secret),
		salt,
		params.Iterations,
		params.MemoryKiB,
		params.Parallelism,
		params.KeyLength,
	)
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

func isBcryptDigest(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}

func verifyBcrypt(secret, digest string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil || cost > maxBcryptVerifyCost {
		return false, ErrMalformedDigest
	}

	// CompareHashAndPassword is constant-time over the hash output.
	err = bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		// Such a secret could never have been hashed by us.
		return false, nil
	default:
		return false, ErrMalformedDigest
	}
}

func withinReasonableBounds(got, limits Argon2idParams) bool {
	// Older/smaller settings still verify; wildly larger ones do not.
	if got.MemoryKiB > limits.MemoryKiB*2 {
		return false
	}
	if got.Iterations > limits.Iterations*2 {
		return false
	}
	if got.Parallelism > limits.Parallelism*2 {
		return false
	}
	if got.SaltLength < 8 || got.SaltLength > 64 {
		return false
	}
	if got.KeyLength < 16 || got.KeyLength > 128 {
		return false
	}
	return true
}

// decodeArgon2id parses $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>.
func decodeArgon2id(encoded string) (Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, ErrMalformedDigest
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2Version) {
		return Argon2idParams{}, nil, nil, ErrMalformedDigest
	}

	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Argon2idParams{}, nil, nil, ErrMalformedDigest
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2idParams{}, nil, nil, ErrMalformedDigest
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrMalformedDigest
	}
	hash, err := b64.DecodeString(parts[5])
	if err != nil {
		return Argon2idParams{}, nil, nil, ErrMalformedDigest
	}

	params := Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),        // #nosec G115 -- bounded to 255 above.
		SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by withinReasonableBounds.
		KeyLength:   uint32(len(hash)), // #nosec G115 -- bounded by withinReasonableBounds.
	}
	return params, salt, hash, nil
}
