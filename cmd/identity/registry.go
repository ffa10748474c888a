package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/christine-M9/Hashing-passwords-API/cmd/identity/ids"
	"github.com/christine-M9/Hashing-passwords-API/cmd/security/password"
)

// Hasher produces and verifies self-describing secret digests.
// *password.Hasher implements it.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) (bool, error)
}

// timingDigester is implemented by hashers that can produce a verification
// target without applying their secret policy. *password.Hasher implements it.
type timingDigester interface {
	TimingDigest() (string, error)
}

// AuthResult is the outcome of Authenticate. A missing account and a wrong
// secret are deliberately the same value.
type AuthResult struct {
	Authenticated bool
}

// Registry implements registration and authentication over a Store.
//
// Concurrency contract:
//   - Register serialises the whole load, check, hash, append, save cycle. When
//     the store implements Updater (FileStore, PostgresStore) the cycle runs under
//     the store's own lock, so registries sharing one store are serialised too;
//     otherwise wmu serialises it within this Registry.
//   - Authenticate takes no registry lock; the store's atomic Save guarantees it
//     sees either the pre- or post-write collection.
type Registry struct {
	log    *slog.Logger
	store  Store
	hasher Hasher
	now    func() time.Time

	wmu sync.Mutex

	dummyMu     sync.Mutex
	dummyDigest string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for data-integrity events.
func WithLogger(log *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithClock overrides time.Now (id timestamps).
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry wires a Registry. Both store and hasher are required.
func NewRegistry(store Store, hasher Hasher, opts ...RegistryOption) (*Registry, error) {
	if store == nil {
		return nil, errors.New("identity: nil store")
	}
	if hasher == nil {
		return nil, errors.New("identity: nil hasher")
	}

	r := &Registry{
		log:    slog.Default(),
		store:  store,
		hasher: hasher,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Register creates an account for identity and returns its id.
//
// Errors: ErrInvalidInput (empty fields or secret policy), ErrDuplicateIdentity,
// ErrStoreFailure (wrapping ErrStorageUnavailable or ErrStorageWriteFailed).
func (r *Registry) Register(ctx context.Context, identity, secret string) (string, error) {
	const op = "identity.Register"

	if identity == "" || secret == "" {
		return "", invalid(op, "identity and secret are required")
	}

	r.wmu.Lock()
	defer r.wmu.Unlock()

	var id string
	add := func(accounts []Account) ([]Account, error) {
		if _, exists := findByIdentity(accounts, identity); exists {
			return nil, OpError{Op: op, Kind: ErrDuplicateIdentity}
		}

		digest, err := r.hasher.Hash(secret)
		if err != nil {
			if password.IsPolicyViolation(err) {
				return nil, OpError{Op: op, Kind: ErrInvalidInput, Err: err}
			}
			return nil, err
		}

		newID, err := ids.NewULID(r.now())
		if err != nil {
			return nil, err
		}
		id = newID

		out := make([]Account, 0, len(accounts)+1)
		out = append(out, accounts...)
		return append(out, Account{ID: id, Identity: identity, SecretDigest: digest}), nil
	}

	if u, ok := r.store.(Updater); ok {
		if err := u.Update(ctx, add); err != nil {
			return "", r.classify(op, err)
		}
		return id, nil
	}

	accounts, err := r.store.Load(ctx)
	if err != nil {
		return "", storeFailure(op, err)
	}
	next, err := add(accounts)
	if err != nil {
		return "", err
	}
	if err := r.store.Save(ctx, next); err != nil {
		return "", storeFailure(op, err)
	}
	return id, nil
}

// Authenticate reports whether secret matches the account registered for identity.
// An unknown identity is a normal {Authenticated: false} outcome.
//
// Errors: ErrInvalidInput, ErrStoreFailure, password.ErrMalformedDigest.
func (r *Registry) Authenticate(ctx context.Context, identity, secret string) (AuthResult, error) {
	const op = "identity.Authenticate"

	if identity == "" || secret == "" {
		return AuthResult{}, invalid(op, "identity and secret are required")
	}

	accounts, err := r.store.Load(ctx)
	if err != nil {
		return AuthResult{}, storeFailure(op, err)
	}

	acct, found := findByIdentity(accounts, identity)
	if !found {
		// Spend the same verification cost as for a real account.
		if d := r.timingDigest(); d != "" {
			_, _ = r.hasher.Verify(secret, d)
		}
		return AuthResult{Authenticated: false}, nil
	}

	ok, err := r.hasher.Verify(secret, acct.SecretDigest)
	if err != nil {
		if IsMalformedDigest(err) {
			r.log.Error("identity.digest.malformed", "account_id", acct.ID)
			return AuthResult{}, OpError{Op: op, Kind: password.ErrMalformedDigest, Msg: "account " + acct.ID}
		}
		return AuthResult{}, err
	}
	return AuthResult{Authenticated: ok}, nil
}

// classify maps errors returned through Updater.Update: errors produced by the
// cycle itself pass through, anything else came from the store.
func (r *Registry) classify(op string, err error) error {
	var oe OpError
	if errors.As(err, &oe) && (oe.Op == op) {
		return err
	}
	if errors.Is(err, ErrDuplicateIdentity) {
		// Constraint raised by the store itself.
		return OpError{Op: op, Kind: ErrDuplicateIdentity, Err: err}
	}
	if errors.Is(err, ErrStorageUnavailable) || errors.Is(err, ErrStorageWriteFailed) {
		return storeFailure(op, err)
	}
	return err
}

// timingDigest lazily computes a digest used only to equalise timing.
// A failed attempt is not cached; the next unknown-identity lookup retries.
func (r *Registry) timingDigest() string {
	r.dummyMu.Lock()
	defer r.dummyMu.Unlock()

	if r.dummyDigest != "" {
		return r.dummyDigest
	}

	var (
		d   string
		err error
	)
	if td, ok := r.hasher.(timingDigester); ok {
		d, err = td.TimingDigest()
	} else {
		d, err = r.hasher.Hash("dummy-secret-for-timing-only")
	}
	if err != nil {
		r.log.Warn("identity.timing_digest.fail", "err", err)
		return ""
	}
	r.dummyDigest = d
	return d
}
