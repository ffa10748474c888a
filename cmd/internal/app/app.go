// Package app wires the credential server runtime: config, logging, storage, and HTTP routes.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	authapi "github.com/christine-M9/Hashing-passwords-API/cmd/internal/auth/api"
	"github.com/christine-M9/Hashing-passwords-API/cmd/identity"
	"github.com/christine-M9/Hashing-passwords-API/cmd/security/password"
	"github.com/christine-M9/Hashing-passwords-API/cmd/security/token"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is the server runtime: it owns the credential store and HTTP wiring.
type App struct {
	cfg Config
	log Logger

	store identity.Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	metrics *prometheus.Registry
	auth    *authapi.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	}

	pcfg, err := ValidateSecurityConfig(cfg)
	if err != nil {
		return nil, err
	}

	st, dbPool, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	a, err := newApp(cfg, log, st, dbPool, pcfg)
	if err != nil {
		if dbPool != nil {
			dbPool.Close()
		}
		return nil, err
	}
	return a, nil
}

func newApp(cfg Config, log Logger, st identity.Store, dbPool *pgxpool.Pool, pcfg password.Config) (*App, error) {
	hasher, err := password.New(pcfg)
	if err != nil {
		return nil, err
	}

	reg, err := identity.NewRegistry(st, hasher, identity.WithLogger(log))
	if err != nil {
		return nil, err
	}

	var promReg *prometheus.Registry
	var opts []authapi.HandlerOption
	if cfg.MetricsEnabled {
		promReg = prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err := authapi.NewMetrics(promReg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, authapi.WithMetrics(m))
	}

	fp := token.FingerprinterFromEnv()
	if !fp.Keyed() {
		log.Warn("audit.fingerprint.unkeyed", "hint", "set "+token.HMACEnvKey+" to key identity fingerprints")
	}
	opts = append(opts, authapi.WithFingerprinter(fp))

	auth, err := authapi.NewHandler(log, reg, authapi.LoadConfigFromEnv(), opts...)
	if err != nil {
		return nil, err
	}

	log.Info("password.hasher.ready", "algorithm", string(pcfg.Algorithm))

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbPool != nil,
		metrics:   promReg,
		auth:      auth,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.store, a.dbPool, a.dbEnabled, a.metrics, a.auth)

	var h http.Handler = mux
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	h = WithRecover(h, a.log)
	return WithRequestLogging(h, a.log)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled, "store_path", a.storePath())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.close()
		return err
	}

	a.close()
	a.log.Info("server.stopped")
	return nil
}

func (a *App) close() {
	if a.dbPool != nil {
		a.dbPool.Close()
	}
}

func (a *App) storePath() string {
	if fs, ok := a.store.(*identity.FileStore); ok {
		return fs.Path()
	}
	return ""
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newStore decides between Postgres-backed persistence and the JSON file store.
// The app owns the pool lifecycle.
func newStore(ctx context.Context, cfg Config, log Logger) (identity.Store, *pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		st, err := identity.NewFileStore(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		// Create the file up front so a bad path fails at startup.
		if _, err := st.Load(ctx); err != nil {
			return nil, nil, err
		}
		log.Info("store.file", "path", st.Path())
		return st, nil, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	st, err := identity.NewPostgresStore(pool, identity.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	log.Info("store.postgres", "schema", cfg.DBSchema)
	return st, pool, nil
}
