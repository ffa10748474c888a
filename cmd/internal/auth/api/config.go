package authapi

import (
	"os"
	"strconv"
	"strings"
)

// Config controls auth API transport limits.
type Config struct {
	// MaxBodyBytes bounds request bodies.
	MaxBodyBytes int64
	// TrustProxy makes audit events use X-Forwarded-For / X-Real-IP.
	TrustProxy bool
}

// DefaultConfig returns the defaults used when no env is set.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes: 64 << 10, // 64 KiB
		TrustProxy:   false,
	}
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		MaxBodyBytes: envInt64("CREDSTORE_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		TrustProxy:   envBool("CREDSTORE_AUTH_TRUST_PROXY", def.TrustProxy),
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
