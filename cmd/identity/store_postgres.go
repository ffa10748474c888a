package identity

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the account collection in a PostgreSQL table.
//
// Design notes:
//   - The pgx pool is owned by the caller; this store never closes it.
//   - Schema/table identifiers are quoted to avoid SQL injection via identifiers.
//   - Save replaces the whole collection inside one transaction, so concurrent
//     readers see either the previous or the new collection. created_at records
//     when a row was first written and is never rewritten.
//   - Update serialises load-modify-save across processes with a transaction-scoped
//     advisory lock derived from the table name.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string

	initMu sync.Mutex
	ready  bool
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema (default "credstore").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("identity: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore. The table is created on first access.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "credstore",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "accounts"}.Sanitize()
}

// lockKey is the advisory lock id guarding this store's table.
func (s *PostgresStore) lockKey() int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s.schema + ".accounts"))
	return int64(h.Sum64()) // #nosec G115 -- only the bit pattern matters.
}

// ensure creates the schema and table once. A failed attempt is retried on the next call.
func (s *PostgresStore) ensure(ctx context.Context) error {
	s.initMu.Lock()
	defer s.initMu.Unlock()

	if s.ready {
		return nil
	}

	ddl := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %s;
CREATE TABLE IF NOT EXISTS %s (
  id            TEXT PRIMARY KEY,
  identity      TEXT NOT NULL,
  secret_digest TEXT NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT uq_accounts_identity UNIQUE (identity)
);`, pgx.Identifier{s.schema}.Sanitize(), s.table())

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return err
	}
	s.ready = true
	return nil
}

// Load returns the full collection ordered by creation.
func (s *PostgresStore) Load(ctx context.Context) ([]Account, error) {
	const op = "identity.PostgresStore.Load"

	if err := s.ensure(ctx); err != nil {
		return nil, OpError{Op: op, Kind: ErrStorageUnavailable, Msg: "initialise", Err: err}
	}
	accounts, err := s.selectAll(ctx, s.pool)
	if err != nil {
		return nil, OpError{Op: op, Kind: ErrStorageUnavailable, Err: err}
	}
	return accounts, nil
}

// Save replaces the full collection in one transaction.
func (s *PostgresStore) Save(ctx context.Context, accounts []Account) error {
	const op = "identity.PostgresStore.Save"

	if err := s.ensure(ctx); err != nil {
		return OpError{Op: op, Kind: ErrStorageWriteFailed, Msg: "initialise", Err: err}
	}

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite},
		func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, s.lockKey()); err != nil {
				return err
			}
			return s.replaceAll(ctx, tx, accounts)
		})
	if err != nil {
		return s.writeErr(op, err)
	}
	return nil
}

// Update runs fn over the current collection and persists its result, holding
// the table's advisory lock for the whole cycle.
func (s *PostgresStore) Update(ctx context.Context, fn func([]Account) ([]Account, error)) error {
	const op = "identity.PostgresStore.Update"

	if err := s.ensure(ctx); err != nil {
		return OpError{Op: op, Kind: ErrStorageUnavailable, Msg: "initialise", Err: err}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return OpError{Op: op, Kind: ErrStorageUnavailable, Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, s.lockKey()); err != nil {
		return OpError{Op: op, Kind: ErrStorageUnavailable, Err: err}
	}

	current, err := s.selectAll(ctx, tx)
	if err != nil {
		return OpError{Op: op, Kind: ErrStorageUnavailable, Err: err}
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	if err := s.replaceAll(ctx, tx, next); err != nil {
		return s.writeErr(op, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return s.writeErr(op, err)
	}
	return nil
}

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *PostgresStore) selectAll(ctx context.Context, q pgQuerier) ([]Account, error) {
	rows, err := q.Query(ctx,
		`SELECT id, identity, secret_digest FROM `+s.table()+` ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	accounts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Account, error) {
		var a Account
		err := row.Scan(&a.ID, &a.Identity, &a.SecretDigest)
		return a, err
	})
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []Account{}
	}
	return accounts, nil
}

// replaceAll makes the table hold exactly accounts. Rows that survive keep their
// created_at; new rows are stamped in slice order after every existing row.
func (s *PostgresStore) replaceAll(ctx context.Context, tx pgx.Tx, accounts []Account) error {
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.ID
	}
	if _, err := tx.Exec(ctx, `DELETE FROM `+s.table()+` WHERE NOT (id = ANY($1))`, ids); err != nil {
		return err
	}
	if len(accounts) == 0 {
		return nil
	}

	base := time.Now().UTC()
	batch := &pgx.Batch{}
	for i, a := range accounts {
		batch.Queue(
			`INSERT INTO `+s.table()+` (id, identity, secret_digest, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET identity = EXCLUDED.identity, secret_digest = EXCLUDED.secret_digest`,
			a.ID, a.Identity, a.SecretDigest, base.Add(time.Duration(i)*time.Microsecond),
		)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (s *PostgresStore) writeErr(op string, err error) error {
	if pgIsUniqueViolation(err) {
		return OpError{Op: op, Kind: ErrDuplicateIdentity, Err: err}
	}
	return OpError{Op: op, Kind: ErrStorageWriteFailed, Err: err}
}

func pgIsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" // unique_violation
}
