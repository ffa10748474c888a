package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/christine-M9/Hashing-passwords-API/cmd/identity"
	"github.com/christine-M9/Hashing-passwords-API/cmd/security/password"
)

func newTestApp(t *testing.T) *httptest.Server {
	t.Helper()

	st, err := identity.NewFileStore(filepath.Join(t.TempDir(), "users.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	pcfg := password.DefaultConfig()
	pcfg.Algorithm = password.AlgorithmBcrypt
	pcfg.BcryptCost = 4

	cfg := Config{
		CORSAllowedOrigins: []string{"*"},
		MetricsEnabled:     true,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := newApp(cfg, log, st, nil, pcfg)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func mustPost(t *testing.T, url, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func mustGet(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestApp_EndToEnd(t *testing.T) {
	srv := newTestApp(t)

	code, body := mustPost(t, srv.URL+"/api/auth/signup", `{"email":"a@x.com","password":"pw1"}`)
	if code != http.StatusOK || !strings.Contains(body, `"message":"success"`) {
		t.Fatalf("signup: %d %s", code, body)
	}

	code, body = mustPost(t, srv.URL+"/api/auth/signup", `{"email":"a@x.com","password":"pw2"}`)
	if code != http.StatusBadRequest || !strings.Contains(body, "User already exists") {
		t.Fatalf("duplicate signup: %d %s", code, body)
	}

	code, body = mustPost(t, srv.URL+"/api/auth/signin", `{"email":"a@x.com","password":"pw1"}`)
	if code != http.StatusOK || !strings.Contains(body, `"authenticated":true`) {
		t.Fatalf("signin: %d %s", code, body)
	}

	code, body = mustPost(t, srv.URL+"/api/auth/signin", `{"email":"a@x.com","password":"nope"}`)
	if code != http.StatusOK || !strings.Contains(body, `"authenticated":false`) {
		t.Fatalf("wrong-password signin: %d %s", code, body)
	}
}

func TestApp_Probes(t *testing.T) {
	srv := newTestApp(t)

	if code, body := mustGet(t, srv.URL+"/healthz"); code != http.StatusOK || body != "ok\n" {
		t.Fatalf("healthz: %d %q", code, body)
	}
	if code, body := mustGet(t, srv.URL+"/readyz"); code != http.StatusOK || body != "ready\n" {
		t.Fatalf("readyz: %d %q", code, body)
	}
}

func TestApp_Metrics(t *testing.T) {
	srv := newTestApp(t)

	_, _ = mustPost(t, srv.URL+"/api/auth/signin", `{"email":"ghost@x.com","password":"pw"}`)

	code, body := mustGet(t, srv.URL+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("metrics status=%d", code)
	}
	if !strings.Contains(body, `credstore_auth_requests_total{op="signin",result="rejected"} 1`) {
		t.Fatalf("missing auth counter in metrics output:\n%s", body)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatalf("missing go collector metrics")
	}
}

func TestApp_SecurityHeaders(t *testing.T) {
	srv := newTestApp(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_ = resp.Body.Close()
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options=%q", got)
	}
}
