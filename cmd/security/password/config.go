package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Algorithm selects the scheme used for new digests.
type Algorithm string

const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy controls secret validation and anti-DoS boundaries.
type Policy struct {
	MinLength int
	// MaxLength 0 leaves the length uncapped; the request body limit still applies.
	MaxLength int
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool
}

// Config is the single configuration surface for this package.
type Config struct {
	Algorithm  Algorithm
	Params     Argon2idParams
	BcryptCost int
	Policy     Policy
}

// DefaultConfig returns parameters tuned for interactive logins: one
// verification costs on the order of 100ms on commodity hardware.
func DefaultConfig() Config {
	// Parallelism follows the host but is clamped to [1..4] to keep container usage predictable.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Algorithm: AlgorithmArgon2id,
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024, // 64 MiB
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		BcryptCost: 10,
		Policy: Policy{
			MinLength:      1,
			MaxLength:      0,
			RejectVeryWeak: false,
		},
	}
}

// FromEnv loads config from environment variables on top of DefaultConfig.
//
// Env surface:
// - CREDSTORE_PASSWORD_ALGORITHM (argon2id|bcrypt)
// - CREDSTORE_BCRYPT_COST
// - CREDSTORE_PASSWORD_MIN_LEN
// - CREDSTORE_PASSWORD_MAX_LEN
// - CREDSTORE_PASSWORD_REJECT_VERY_WEAK (true/false)
// - CREDSTORE_ARGON2_MEMORY_KIB
// - CREDSTORE_ARGON2_ITERATIONS
// - CREDSTORE_ARGON2_PARALLELISM
// - CREDSTORE_ARGON2_SALT_LEN
// - CREDSTORE_ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := lookupEnv("CREDSTORE_PASSWORD_ALGORITHM"); ok {
		a, err := parseAlgorithm(v)
		if err != nil {
			return Config{}, fmt.Errorf("CREDSTORE_PASSWORD_ALGORITHM: %w", err)
		}
		cfg.Algorithm = a
	}

	if v, ok := lookupEnv("CREDSTORE_BCRYPT_COST"); ok {
		n, err := atoiPositiveInt(v, bcrypt.MinCost, bcrypt.MaxCost)
		if err != nil {
			return Config{}, fmt.Errorf("CREDSTORE_BCRYPT_COST: %w", err)
		}
		cfg.BcryptCost = n
	}

	if v, ok := lookupEnv("CREDSTORE_PASSWORD_MIN_LEN"); ok {
		n, err := atoiPositiveInt(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("CREDSTORE_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := lookupEnv("CREDSTORE_PASSWORD_MAX_LEN"); ok {
		n, err := atoiPositiveInt(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("CREDSTORE_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if v, ok := lookupEnv("CREDSTORE_PASSWORD_REJECT_VERY_WEAK"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("CREDSTORE_PASSWORD_REJECT_VERY_WEAK: invalid boolean")
		}
		cfg.Policy.RejectVeryWeak = b
	}

	if v, ok := lookupEnv("CREDSTORE_ARGON2_MEMORY_KIB"); ok {
		u, err := atou32(v, 8*1024, 1024*1024) // 8 MiB .. 1 GiB
		if err != nil {
			return Config{}, fmt.Errorf("CREDSTORE_ARGON2_MEMORY_KIB: %w", err)
		}
		cfg.Params.MemoryKiB = u
	}

	if v, ok := lookupEnv("CREDSTORE_ARGON2_ITERATIONS"); ok {
		u, err := atou32(v, 1, 20)
		if err != nil {
			return Config{}, fmt.Errorf("CREDSTORE_ARGON2_ITERATIONS: %w", err)
		}
		cfg.Params.Iterations = u
	}

	if v, ok := lookupEnv("CREDSTORE_ARGON2_PARALLELISM"); ok {
		u, err := atou32(v, 1, 64)
		if err != nil {
			return Config{}, fmt.Errorf("CREDSTORE_ARGON2_PARALLELISM: %w", err)
		}
		p, err := u32ToU8(u)
		if err != nil {
			return Config{}, fmt.Errorf("CREDSTORE_ARGON2_PARALLELISM: %w", err)
		}
		cfg.Params.Parallelism = p
	}

	if v, ok := lookupEnv("CREDSTORE_ARGON2_SALT_LEN"); ok {
		u, err := atou32(v, 8, 64)
		if err != nil {
			return Config{}, fmt.Errorf("CREDSTORE_ARGON2_SALT_LEN: %w", err)
		}
		cfg.Params.SaltLength = u
	}

	if v, ok := lookupEnv("CREDSTORE_ARGON2_KEY_LEN"); ok {
		u, err := atou32(v, 16, 64)
		if err != nil {
			return Config{}, fmt.Errorf("CREDSTORE_ARGON2_KEY_LEN: %w", err)
		}
		cfg.Params.KeyLength = u
	}

	if err := cfg.Check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Check validates the configuration itself (not a secret).
func (c Config) Check() error {
	switch c.Algorithm {
	case AlgorithmArgon2id, AlgorithmBcrypt:
	default:
		return fmt.Errorf("password: unsupported algorithm %q", c.Algorithm)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("password: bcrypt cost out of range [%d..%d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Params.MemoryKiB == 0 || c.Params.Iterations == 0 || c.Params.Parallelism == 0 {
		return fmt.Errorf("password: argon2id params must be non-zero")
	}
	if c.Params.SaltLength < 8 || c.Params.KeyLength < 16 {
		return fmt.Errorf("password: argon2id salt/key too short")
	}
	if c.Policy.MinLength < 1 {
		return fmt.Errorf("password policy invalid: min_len must be >= 1")
	}
	if c.Policy.MaxLength < 0 {
		return fmt.Errorf("password policy invalid: max_len must be >= 0")
	}
	if c.Policy.MaxLength > 0 && c.Policy.MinLength > c.Policy.MaxLength {
		return fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			c.Policy.MinLength,
			c.Policy.MaxLength,
		)
	}
	return nil
}

func parseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case AlgorithmArgon2id:
		return AlgorithmArgon2id, nil
	case AlgorithmBcrypt:
		return AlgorithmBcrypt, nil
	default:
		return "", fmt.Errorf("unsupported algorithm (use argon2id or bcrypt)")
	}
}

func atoiPositiveInt(s string, minVal, maxVal int) (int, error) {
	s = strings.TrimSpace(s)
	i64, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	s = strings.TrimSpace(s)
	u64, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}

	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}

func u32ToU8(u uint32) (uint8, error) {
	if u > math.MaxUint8 {
		return 0, fmt.Errorf("out of range [0..%d]", math.MaxUint8)
	}
	return uint8(u), nil
}

// lookupEnv treats a blank variable as unset.
func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
