package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		got := parseLogLevel(tc.in)
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestNewLogHandler_JSONDefault(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newLogHandler(&buf, "info", "", false))
	log.Info("server.start", "addr", ":4000")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "server.start" || rec["addr"] != ":4000" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestNewLogHandler_LevelFilter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newLogHandler(&buf, "warn", "text", false))
	log.Info("dropped")
	log.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Fatalf("level filter not applied: %q", out)
	}
}

func TestPrettyHandler_Line(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, false))
	log.With("component", "http").WithGroup("req").Warn("http.request", "path", "/api/auth/signin", "status", 404, "ua", "curl test")

	out := buf.String()
	for _, want := range []string{
		"[WARN] http.request",
		"component=http",
		"req.path=/api/auth/signin",
		"req.status=404",
		`req.ua="curl test"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("color disabled but output has ANSI codes: %q", out)
	}
}

func TestPrettyHandler_Color(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, true))
	log.Error("boom", "status", 500)

	out := buf.String()
	if !strings.Contains(out, ansiRed+"[ERROR]"+ansiReset) {
		t.Fatalf("expected red level tag: %q", out)
	}
	if !strings.Contains(out, "status="+ansiRed+"500"+ansiReset) {
		t.Fatalf("expected red status: %q", out)
	}
}
