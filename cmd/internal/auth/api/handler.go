package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/christine-M9/Hashing-passwords-API/cmd/identity"
	"github.com/christine-M9/Hashing-passwords-API/cmd/security/password"
	"github.com/christine-M9/Hashing-passwords-API/cmd/security/token"
)

// Registry is the credential core the handler drives. *identity.Registry implements it.
type Registry interface {
	Register(ctx context.Context, identity, secret string) (string, error)
	Authenticate(ctx context.Context, identity, secret string) (identity.AuthResult, error)
}

// Handler wires the HTTP auth endpoints to the credential registry.
type Handler struct {
	log *slog.Logger
	cfg Config

	registry Registry
	metrics  *Metrics
	fp       token.Fingerprinter
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithMetrics records request outcomes in m.
func WithMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) {
		if h == nil || m == nil {
			return
		}
		h.metrics = m
	}
}

// WithFingerprinter overrides how identities are pseudonymised in audit events.
func WithFingerprinter(fp token.Fingerprinter) HandlerOption {
	return func(h *Handler) {
		if h == nil {
			return
		}
		h.fp = fp
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, registry Registry, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if registry == nil {
		return nil, errors.New("auth: nil registry")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		registry: registry,
		fp:       token.NewFingerprinter(nil),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/api/auth/signup", h.handleSignup)
	mux.HandleFunc("/api/auth/signin", h.handleSignin)
}

// ---- handlers ----

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	const op = "signup"

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	started := time.Now()
	var req credentialsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.metrics.observe(op, "invalid_json", started)
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()

	id, err := h.registry.Register(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case identity.IsDuplicate(err):
			h.auditSignupRejected(ctx, ip, ua, req.Email, "duplicate")
			h.metrics.observe(op, "duplicate", started)
			writeError(w, http.StatusBadRequest, "user_exists", "User already exists")
		case identity.IsInvalidInput(err) && password.IsPolicyViolation(err):
			h.auditSignupRejected(ctx, ip, ua, req.Email, "password_policy")
			h.metrics.observe(op, "invalid_input", started)
			writeError(w, http.StatusBadRequest, "invalid_password", policyMessage(err))
		case identity.IsInvalidInput(err):
			h.metrics.observe(op, "invalid_input", started)
			writeError(w, http.StatusBadRequest, "invalid_request", "Email and password are required")
		default:
			h.log.Error("auth.signup.fail", "err", err, "store_failure", identity.IsStoreFailure(err))
			h.metrics.observe(op, "error", started)
			writeError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	h.auditSignup(ctx, id, ip, ua, req.Email)
	h.metrics.observe(op, "success", started)
	writeJSON(w, http.StatusOK, signupResponse{Message: "success", ID: id})
}

func (h *Handler) handleSignin(w http.ResponseWriter, r *http.Request) {
	const op = "signin"

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	started := time.Now()
	var req credentialsRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		h.metrics.observe(op, "invalid_json", started)
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	ctx := r.Context()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()

	res, err := h.registry.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		switch {
		case identity.IsInvalidInput(err):
			h.metrics.observe(op, "invalid_input", started)
			writeError(w, http.StatusBadRequest, "invalid_request", "Email and password are required")
		case identity.IsMalformedDigest(err):
			h.auditDigestMalformed(ctx, ip, ua, req.Email, err)
			h.metrics.observe(op, "error", started)
			writeError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		default:
			h.log.Error("auth.signin.fail", "err", err, "store_failure", identity.IsStoreFailure(err))
			h.metrics.observe(op, "error", started)
			writeError(w, http.StatusInternalServerError, "server_error", "Internal server error")
		}
		return
	}

	// Unknown identity and wrong secret share this path and this response.
	h.auditSignin(ctx, ip, ua, req.Email, res.Authenticated)
	if res.Authenticated {
		h.metrics.observe(op, "authenticated", started)
	} else {
		h.metrics.observe(op, "rejected", started)
	}
	writeJSON(w, http.StatusOK, signinResponse{Authenticated: res.Authenticated})
}

func policyMessage(err error) string {
	switch {
	case errors.Is(err, password.ErrPasswordTooLong):
		return "Password is too long"
	case errors.Is(err, password.ErrWeakPassword):
		return "Password is too weak"
	default:
		return "Password is too short"
	}
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
