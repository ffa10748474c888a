package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
)

// FileStore keeps the account collection in a single JSON file.
//
// Design notes:
//   - The file holds a JSON array of {"id","identity","secretDigest"} records.
//   - Writes go to a temp file in the same directory which is fsynced and renamed
//     over the target, so the file is always either the old or the new collection.
//   - Loads share mu; saves, updates and first-time initialisation hold it exclusively.
type FileStore struct {
	path string
	perm fs.FileMode

	mu sync.RWMutex

	// writeFile is swapped in tests to simulate I/O failures.
	writeFile func(filename string, data []byte, perm os.FileMode, opts ...renameio.Option) error
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithFileMode sets the permission bits of the collection file (default 0600).
func WithFileMode(perm fs.FileMode) FileOption {
	return func(s *FileStore) {
		if perm != 0 {
			s.perm = perm
		}
	}
}

// NewFileStore returns a store backed by the file at path.
// The file is not touched until the first Load or Save.
func NewFileStore(path string, opts ...FileOption) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, invalid("identity.NewFileStore", "empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, OpError{Op: "identity.NewFileStore", Kind: ErrInvalidInput, Err: err}
	}

	s := &FileStore{
		path:      abs,
		perm:      0o600,
		writeFile: renameio.WriteFile,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Path returns the absolute path of the collection file.
func (s *FileStore) Path() string { return s.path }

// Load returns the persisted collection, creating an empty one if the file does not exist.
func (s *FileStore) Load(ctx context.Context) ([]Account, error) {
	const op = "identity.FileStore.Load"

	if err := ctx.Err(); err != nil {
		return nil, OpError{Op: op, Kind: ErrStorageUnavailable, Err: err}
	}

	s.mu.RLock()
	accounts, err := s.read()
	s.mu.RUnlock()
	if err == nil {
		return accounts, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, OpError{Op: op, Kind: ErrStorageUnavailable, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have initialised (or saved) while we waited.
	return s.readOrInit(op)
}

// Update runs fn over the current collection and persists its result while
// holding the store lock exclusively, so every Registry sharing this store
// sees one serialised load-modify-save cycle. A missing file is initialised
// as in Load. If fn fails nothing is written and its error is returned as is.
func (s *FileStore) Update(ctx context.Context, fn func([]Account) ([]Account, error)) error {
	const op = "identity.FileStore.Update"

	if err := ctx.Err(); err != nil {
		return OpError{Op: op, Kind: ErrStorageUnavailable, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readOrInit(op)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	if err := s.write(next); err != nil {
		return OpError{Op: op, Kind: ErrStorageWriteFailed, Err: err}
	}
	return nil
}

// readOrInit must be called with mu held exclusively.
func (s *FileStore) readOrInit(op string) ([]Account, error) {
	accounts, err := s.read()
	switch {
	case err == nil:
		return accounts, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, OpError{Op: op, Kind: ErrStorageUnavailable, Err: err}
	}

	if err := s.write(nil); err != nil {
		return nil, OpError{Op: op, Kind: ErrStorageUnavailable, Msg: "initialise", Err: err}
	}
	return []Account{}, nil
}

// Save atomically replaces the persisted collection.
func (s *FileStore) Save(ctx context.Context, accounts []Account) error {
	const op = "identity.FileStore.Save"

	if err := ctx.Err(); err != nil {
		return OpError{Op: op, Kind: ErrStorageWriteFailed, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(accounts); err != nil {
		return OpError{Op: op, Kind: ErrStorageWriteFailed, Err: err}
	}
	return nil
}

// read must be called with mu held (shared or exclusive).
func (s *FileStore) read() ([]Account, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	// A blank file is a legitimately empty collection.
	if len(bytes.TrimSpace(data)) == 0 {
		return []Account{}, nil
	}

	var accounts []Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, err
	}
	if accounts == nil {
		// "null" is not a collection.
		return nil, errors.New("collection is not a JSON array")
	}
	return accounts, nil
}

// write must be called with mu held exclusively.
func (s *FileStore) write(accounts []Account) error {
	if accounts == nil {
		accounts = []Account{}
	}
	data, err := json.MarshalIndent(accounts, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return err
	}
	return s.writeFile(s.path, data, s.perm)
}
