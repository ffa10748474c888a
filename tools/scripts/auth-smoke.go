// Package main provides a CI-friendly smoke test for the credential API.
//
// It validates:
//   - signup of a fresh identity
//   - duplicate signup rejection
//   - signin with the right and a wrong secret
//   - signin of an unknown identity
//   - concurrent signups of one identity yield exactly one success
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type smokeClient struct {
	base    string
	http    *http.Client
	verbose bool
}

func main() {
	var (
		baseURL = flag.String("url", "http://127.0.0.1:4000", "Server base URL")
		secret  = flag.String("password", "correct horse battery staple", "Secret used for the test account")
		racers  = flag.Int("race", 8, "Concurrent signups of one identity (0 disables)")
		timeout = flag.Duration("timeout", 10*time.Second, "Per-request timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if err := validateBaseURL(*baseURL); err != nil {
		fatalf("invalid -url: %v", err)
	}

	c := &smokeClient{
		base:    strings.TrimRight(*baseURL, "/"),
		http:    &http.Client{Timeout: *timeout},
		verbose: *verbose,
	}
	ctx := context.Background()

	email := fmt.Sprintf("smoke-%d@example.test", time.Now().UnixNano())

	status, body := c.post(ctx, "/api/auth/signup", credentials{Email: email, Password: *secret})
	if status != http.StatusOK {
		fatalf("signup: status=%d body=%s", status, body)
	}
	var su struct {
		Message string `json:"message"`
		ID      string `json:"id"`
	}
	mustDecode(body, &su)
	if su.Message != "success" || su.ID == "" {
		fatalf("signup: unexpected body %s", body)
	}

	status, body = c.post(ctx, "/api/auth/signup", credentials{Email: email, Password: "other"})
	if status != http.StatusBadRequest {
		fatalf("duplicate signup: status=%d body=%s", status, body)
	}

	c.mustSignin(ctx, email, *secret, true)
	c.mustSignin(ctx, email, *secret+"x", false)
	c.mustSignin(ctx, "nobody-"+email, *secret, false)

	if *racers > 0 {
		c.mustRace(ctx, *racers, *secret)
	}

	fmt.Println("OK: auth smoke passed")
}

func (c *smokeClient) mustSignin(ctx context.Context, email, secret string, want bool) {
	status, body := c.post(ctx, "/api/auth/signin", credentials{Email: email, Password: secret})
	if status != http.StatusOK {
		fatalf("signin(%s): status=%d body=%s", email, status, body)
	}
	var res struct {
		Authenticated bool `json:"authenticated"`
	}
	mustDecode(body, &res)
	if res.Authenticated != want {
		fatalf("signin(%s): authenticated=%v want %v", email, res.Authenticated, want)
	}
}

func (c *smokeClient) mustRace(ctx context.Context, n int, secret string) {
	email := fmt.Sprintf("race-%d@example.test", time.Now().UnixNano())

	var ok, dup atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			status, body := c.post(gctx, "/api/auth/signup", credentials{Email: email, Password: secret})
			switch status {
			case http.StatusOK:
				ok.Add(1)
			case http.StatusBadRequest:
				dup.Add(1)
			default:
				return fmt.Errorf("status=%d body=%s", status, body)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fatalf("race: %v", err)
	}
	if ok.Load() != 1 || int(dup.Load()) != n-1 {
		fatalf("race: successes=%d duplicates=%d (want 1 and %d)", ok.Load(), dup.Load(), n-1)
	}
	if c.verbose {
		fmt.Printf("race: %d concurrent signups, exactly one accepted\n", n)
	}
}

func (c *smokeClient) post(ctx context.Context, path string, v any) (int, []byte) {
	b, err := json.Marshal(v)
	if err != nil {
		fatalf("marshal: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		fatalf("request %s: %v", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		fatalf("POST %s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		fatalf("read %s: %v", path, err)
	}
	if c.verbose {
		fmt.Printf("POST %s -> %d %s\n", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.StatusCode, body
}

func mustDecode(b []byte, v any) {
	if err := json.Unmarshal(b, v); err != nil {
		fatalf("decode %q: %v", b, err)
	}
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return errors.New("missing host")
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "FAIL: "+format+"\n", args...)
	os.Exit(1)
}
