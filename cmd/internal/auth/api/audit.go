package authapi

import (
	"context"
	"log/slog"
	"net"
	"strings"
)

// Audit events are structured log records. Identities are recorded only as
// fingerprints; secrets and digests never reach the log.

func (h *Handler) auditSignup(ctx context.Context, accountID string, ip net.IP, ua, identity string) {
	h.audit(ctx, slog.LevelInfo, "auth.signup.success", ip, ua, identity, slog.String("account_id", accountID))
}

func (h *Handler) auditSignupRejected(ctx context.Context, ip net.IP, ua, identity, reason string) {
	h.audit(ctx, slog.LevelInfo, "auth.signup.rejected", ip, ua, identity, slog.String("reason", reason))
}

func (h *Handler) auditSignin(ctx context.Context, ip net.IP, ua, identity string, ok bool) {
	action := "auth.signin.failed"
	if ok {
		action = "auth.signin.success"
	}
	h.audit(ctx, slog.LevelInfo, action, ip, ua, identity)
}

func (h *Handler) auditDigestMalformed(ctx context.Context, ip net.IP, ua, identity string, err error) {
	h.audit(ctx, slog.LevelError, "auth.signin.digest_malformed", ip, ua, identity, slog.Any("err", err))
}

func (h *Handler) audit(ctx context.Context, level slog.Level, action string, ip net.IP, ua, identity string, extra ...slog.Attr) {
	if h == nil || h.log == nil {
		return
	}

	attrs := make([]slog.Attr, 0, 4+len(extra))
	attrs = append(attrs, slog.String("identity_fp", h.fp.Fingerprint(identity)))
	if ip != nil {
		attrs = append(attrs, slog.String("ip", ip.String()))
	}
	if ua = strings.TrimSpace(ua); ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}
	attrs = append(attrs, extra...)

	h.log.LogAttrs(ctx, level, action, attrs...)
}
