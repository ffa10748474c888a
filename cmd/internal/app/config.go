package app

import (
	"net"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // json | text | pretty
	LogColor  bool

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int

	// StorePath is the JSON credential file used when DatabaseURL is empty.
	StorePath string

	DatabaseURL string
	DBSchema    string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int

	MetricsEnabled bool

	// If true, CREDSTORE_AUDIT_HMAC_KEY MUST be set (>= 32 bytes) so audit
	// fingerprints of identities are keyed.
	RequireAuditHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
//
// PORT is honoured for platform compatibility; CREDSTORE_HTTP_ADDR wins when set.
func LoadConfig() Config {
	addr := EnvString("CREDSTORE_HTTP_ADDR", "")
	if addr == "" {
		addr = net.JoinHostPort("", EnvString("PORT", "4000"))
	}

	return Config{
		HTTPAddr:  addr,
		LogLevel:  EnvString("CREDSTORE_LOG_LEVEL", "info"),
		LogFormat: EnvString("CREDSTORE_LOG_FORMAT", "json"),
		LogColor:  EnvBool("CREDSTORE_LOG_COLOR", false),

		ReadHeaderTimeout: EnvDuration("CREDSTORE_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("CREDSTORE_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("CREDSTORE_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("CREDSTORE_HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   EnvDuration("CREDSTORE_HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),

		MaxHeaderBytes: EnvInt("CREDSTORE_HTTP_MAX_HEADER_BYTES", 1<<20),

		StorePath: EnvString("CREDSTORE_STORE_PATH", "users.json"),

		DatabaseURL: EnvString("CREDSTORE_DATABASE_URL", ""),
		DBSchema:    EnvString("CREDSTORE_DB_SCHEMA", "credstore"),
		DBMaxConns:  EnvInt32("CREDSTORE_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("CREDSTORE_DB_MIN_CONNS", 0),

		ReadinessRequireDB: EnvBool("CREDSTORE_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvStringList("CREDSTORE_CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowCredentials: EnvBool("CREDSTORE_CORS_ALLOW_CREDENTIALS", false),
		CORSMaxAgeSeconds:    EnvInt("CREDSTORE_CORS_MAX_AGE", 600),

		MetricsEnabled: EnvBool("CREDSTORE_METRICS_ENABLED", true),

		RequireAuditHMAC: EnvBool("CREDSTORE_REQUIRE_AUDIT_HMAC", false),
	}
}
