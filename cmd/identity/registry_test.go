package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/christine-M9/Hashing-passwords-API/cmd/identity/ids"
	"github.com/christine-M9/Hashing-passwords-API/cmd/security/password"

	"golang.org/x/sync/errgroup"
)

func testHasher(t *testing.T) *password.Hasher {
	t.Helper()
	cfg := password.DefaultConfig()
	cfg.Algorithm = password.AlgorithmBcrypt
	cfg.BcryptCost = 4
	h, err := password.New(cfg)
	if err != nil {
		t.Fatalf("password.New: %v", err)
	}
	return h
}

func mustNewRegistry(t *testing.T, store Store) *Registry {
	t.Helper()
	r, err := NewRegistry(store, testHasher(t))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestRegistry_Scenario(t *testing.T) {
	ctx := context.Background()
	r := mustNewRegistry(t, newTestFileStore(t))

	id, err := r.Register(ctx, "a@x.com", "pw1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !ids.IsULID(id) {
		t.Fatalf("expected ULID id, got %q", id)
	}

	cases := []struct {
		identity, secret string
		want             bool
	}{
		{"a@x.com", "pw1", true},
		{"a@x.com", "wrong", false},
		{"nobody@x.com", "pw1", false},
		{"A@x.com", "pw1", false}, // identities are case-sensitive
	}
	for _, tc := range cases {
		res, err := r.Authenticate(ctx, tc.identity, tc.secret)
		if err != nil {
			t.Fatalf("authenticate(%q,%q): %v", tc.identity, tc.secret, err)
		}
		if res.Authenticated != tc.want {
			t.Fatalf("authenticate(%q,%q)=%v want %v", tc.identity, tc.secret, res.Authenticated, tc.want)
		}
	}

	if _, err := r.Register(ctx, "a@x.com", "pw2"); !IsDuplicate(err) {
		t.Fatalf("expected duplicate identity, got %v", err)
	}
}

func TestRegistry_DuplicateLeavesCollectionUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)
	r := mustNewRegistry(t, store)

	if _, err := r.Register(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	before, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	_, err = r.Register(ctx, "a@x.com", "pw2")
	if !errors.Is(err, ErrDuplicateIdentity) || !errors.Is(err, ErrConflict) {
		t.Fatalf("expected duplicate/conflict, got %v", err)
	}

	after, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	assertAccountsEqual(t, after, before)

	// The original secret still works, the rejected one does not.
	if res, _ := r.Authenticate(ctx, "a@x.com", "pw2"); res.Authenticated {
		t.Fatalf("rejected secret must not authenticate")
	}
}

func TestRegistry_StoresDigestNotSecret(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)
	r := mustNewRegistry(t, store)

	if _, err := r.Register(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	accounts, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected 1 account, got %d", len(accounts))
	}
	if accounts[0].SecretDigest == "pw1" || accounts[0].SecretDigest == "" {
		t.Fatalf("secret digest not hashed: %q", accounts[0].SecretDigest)
	}
}

func TestRegistry_InvalidInput(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{}
	r := mustNewRegistry(t, store)

	for _, in := range [][2]string{{"", "pw"}, {"a@x.com", ""}, {"", ""}} {
		if _, err := r.Register(ctx, in[0], in[1]); !IsInvalidInput(err) {
			t.Fatalf("register(%q,%q): expected invalid input, got %v", in[0], in[1], err)
		}
		if _, err := r.Authenticate(ctx, in[0], in[1]); !IsInvalidInput(err) {
			t.Fatalf("authenticate(%q,%q): expected invalid input, got %v", in[0], in[1], err)
		}
	}
	if store.loads != 0 || store.saves != 0 {
		t.Fatalf("invalid input must not touch the store: loads=%d saves=%d", store.loads, store.saves)
	}
}

func TestRegistry_PolicyViolationIsInvalidInput(t *testing.T) {
	cfg := password.DefaultConfig()
	cfg.Algorithm = password.AlgorithmBcrypt
	cfg.BcryptCost = 4
	cfg.Policy.MinLength = 8
	h, err := password.New(cfg)
	if err != nil {
		t.Fatalf("password.New: %v", err)
	}
	r, err := NewRegistry(newTestFileStore(t), h)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	_, err = r.Register(context.Background(), "a@x.com", "short")
	if !IsInvalidInput(err) || !errors.Is(err, password.ErrPasswordTooShort) {
		t.Fatalf("expected invalid input wrapping ErrPasswordTooShort, got %v", err)
	}
}

func TestRegistry_ConcurrentSameIdentity(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)
	r := mustNewRegistry(t, store)

	const n = 16
	results := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, results[i] = r.Register(ctx, "race@x.com", fmt.Sprintf("secret-%d", i))
			return nil
		})
	}
	_ = g.Wait()

	successes, dups := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case IsDuplicate(err):
			dups++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || dups != n-1 {
		t.Fatalf("expected 1 success and %d duplicates, got %d/%d", n-1, successes, dups)
	}

	accounts, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("expected exactly one account, got %d", len(accounts))
	}
}

func TestRegistry_ConcurrentDistinctIdentities(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)
	r := mustNewRegistry(t, store)

	const n = 12
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			identity := fmt.Sprintf("user%d@x.com", i)
			if _, err := r.Register(gctx, identity, "pw"); err != nil {
				return err
			}
			res, err := r.Authenticate(gctx, identity, "pw")
			if err != nil {
				return err
			}
			if !res.Authenticated {
				return fmt.Errorf("%s: expected authenticated", identity)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent registrations: %v", err)
	}

	accounts, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(accounts) != n {
		t.Fatalf("expected %d accounts, got %d", n, len(accounts))
	}
	seen := map[string]bool{}
	for _, a := range accounts {
		if seen[a.ID] {
			t.Fatalf("duplicate id %q", a.ID)
		}
		seen[a.ID] = true
	}
}

func TestRegistry_StoreFailures(t *testing.T) {
	ctx := context.Background()

	loadErr := OpError{Op: "test.Load", Kind: ErrStorageUnavailable}
	r := mustNewRegistry(t, &countingStore{loadErr: loadErr})

	_, err := r.Register(ctx, "a@x.com", "pw1")
	if !errors.Is(err, ErrStoreFailure) || !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("register: expected store failure wrapping unavailable, got %v", err)
	}
	_, err = r.Authenticate(ctx, "a@x.com", "pw1")
	if !IsStoreFailure(err) || !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("authenticate: expected store failure, got %v", err)
	}

	saveErr := OpError{Op: "test.Save", Kind: ErrStorageWriteFailed}
	r = mustNewRegistry(t, &countingStore{saveErr: saveErr})
	_, err = r.Register(ctx, "a@x.com", "pw1")
	if !errors.Is(err, ErrStoreFailure) || !errors.Is(err, ErrStorageWriteFailed) {
		t.Fatalf("register: expected store failure wrapping write failure, got %v", err)
	}
}

func TestRegistry_MalformedDigest(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{accounts: []Account{{ID: "1", Identity: "a@x.com", SecretDigest: "garbage"}}}
	r := mustNewRegistry(t, store)

	res, err := r.Authenticate(ctx, "a@x.com", "pw1")
	if !IsMalformedDigest(err) {
		t.Fatalf("expected malformed digest, got %v", err)
	}
	if res.Authenticated {
		t.Fatalf("malformed digest must not authenticate")
	}
}

func TestRegistry_UsesUpdaterWhenAvailable(t *testing.T) {
	ctx := context.Background()
	store := &updaterStore{}
	r := mustNewRegistry(t, store)

	if _, err := r.Register(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Register(ctx, "a@x.com", "pw2"); !IsDuplicate(err) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if store.updates != 2 || store.saves != 0 {
		t.Fatalf("expected Update path only: updates=%d saves=%d", store.updates, store.saves)
	}

	store.updateErr = OpError{Op: "test.Update", Kind: ErrStorageWriteFailed}
	if _, err := r.Register(ctx, "b@x.com", "pw1"); !errors.Is(err, ErrStoreFailure) {
		t.Fatalf("expected store failure, got %v", err)
	}
}

func TestRegistry_SharedFileStoreAcrossRegistries(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)
	r1 := mustNewRegistry(t, store)
	r2 := mustNewRegistry(t, store)

	const rounds, n = 10, 8
	for round := 0; round < rounds; round++ {
		identity := fmt.Sprintf("shared-%d@x.com", round)

		gotIDs := make([]string, n)
		results := make([]error, n)
		var g errgroup.Group
		for i := 0; i < n; i++ {
			r := r1
			if i%2 == 1 {
				r = r2
			}
			g.Go(func() error {
				gotIDs[i], results[i] = r.Register(ctx, identity, "pw")
				return nil
			})
		}
		_ = g.Wait()

		var winner string
		for i, err := range results {
			switch {
			case err == nil:
				if winner != "" {
					t.Fatalf("round %d: two successful registrations of %s", round, identity)
				}
				winner = gotIDs[i]
			case !IsDuplicate(err):
				t.Fatalf("round %d: unexpected error: %v", round, err)
			}
		}
		if winner == "" {
			t.Fatalf("round %d: no successful registration", round)
		}

		accounts, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		acct, ok := findByIdentity(accounts, identity)
		if !ok || acct.ID != winner {
			t.Fatalf("round %d: stored account %#v does not match returned id %q", round, acct, winner)
		}
	}

	accounts, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(accounts) != rounds {
		t.Fatalf("expected %d accounts, got %d", rounds, len(accounts))
	}
}

func TestRegistry_TimingDigestIgnoresPolicy(t *testing.T) {
	cfg := password.DefaultConfig()
	cfg.Algorithm = password.AlgorithmBcrypt
	cfg.BcryptCost = 4
	cfg.Policy.MinLength = 64
	inner, err := password.New(cfg)
	if err != nil {
		t.Fatalf("password.New: %v", err)
	}
	h := &countingHasher{Hasher: inner}

	r, err := NewRegistry(newTestFileStore(t), h)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	for i := 0; i < 2; i++ {
		res, err := r.Authenticate(context.Background(), "ghost@x.com", "pw")
		if err != nil || res.Authenticated {
			t.Fatalf("authenticate unknown: %+v %v", res, err)
		}
	}
	if got := h.verifies.Load(); got != 2 {
		t.Fatalf("expected a verification per unknown-identity lookup, got %d", got)
	}
}

func TestRegistry_TimingDigestRetriesAfterFailure(t *testing.T) {
	h := &flakyTimingHasher{countingHasher: countingHasher{Hasher: testHasher(t)}, failures: 1}
	r, err := NewRegistry(newTestFileStore(t), h)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := r.Authenticate(context.Background(), "ghost@x.com", "pw"); err != nil {
			t.Fatalf("authenticate: %v", err)
		}
	}
	if got := h.verifies.Load(); got != 1 {
		t.Fatalf("expected verification once the digest could be built, got %d", got)
	}
}

func TestNewRegistry_RequiresCollaborators(t *testing.T) {
	if _, err := NewRegistry(nil, testHasher(t)); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := NewRegistry(&countingStore{}, nil); err == nil {
		t.Fatalf("expected error for nil hasher")
	}
}

// ---- fakes ----

type countingStore struct {
	mu       sync.Mutex
	accounts []Account
	loadErr  error
	saveErr  error
	loads    int
	saves    int
}

func (s *countingStore) Load(_ context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return append([]Account{}, s.accounts...), nil
}

func (s *countingStore) Save(_ context.Context, accounts []Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.accounts = append([]Account{}, accounts...)
	return nil
}

type updaterStore struct {
	countingStore
	updates   int
	updateErr error
}

func (s *updaterStore) Update(_ context.Context, fn func([]Account) ([]Account, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateErr != nil {
		return s.updateErr
	}
	next, err := fn(append([]Account{}, s.accounts...))
	if err != nil {
		return err
	}
	s.accounts = next
	return nil
}

type countingHasher struct {
	*password.Hasher
	verifies atomic.Int32
}

func (h *countingHasher) Verify(secret, digest string) (bool, error) {
	h.verifies.Add(1)
	return h.Hasher.Verify(secret, digest)
}

type flakyTimingHasher struct {
	countingHasher
	failures int
}

func (h *flakyTimingHasher) TimingDigest() (string, error) {
	if h.failures > 0 {
		h.failures--
		return "", errors.New("entropy unavailable")
	}
	return h.Hasher.TimingDigest()
}
