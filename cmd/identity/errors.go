package identity

import (
	"errors"
	"fmt"

	"github.com/christine-M9/Hashing-passwords-API/cmd/security/password"
)

// OpError is a typed operation error with a stable Op + Kind contract for callers/tests.
//   - Kind is one of the sentinel kinds (ErrInvalidInput, ErrDuplicateIdentity, ...).
//   - Err, when set, is the underlying cause and is also reachable via errors.Is/As.
//   - Msg may include human-readable context; it never includes secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
	Err  error
}

func (e OpError) Error() string {
	s := fmt.Sprintf("%s: %v", e.Op, e.Kind)
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func invalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

// storeFailure lifts a store error to the registry-level kind, keeping the cause.
func storeFailure(op string, err error) error {
	return OpError{Op: op, Kind: ErrStoreFailure, Err: err}
}

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }

// IsDuplicate reports whether err represents ErrDuplicateIdentity.
func IsDuplicate(err error) bool { return errors.Is(err, ErrDuplicateIdentity) }

// IsStoreFailure reports whether err originated in the credential store.
func IsStoreFailure(err error) bool {
	return errors.Is(err, ErrStoreFailure) ||
		errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrStorageWriteFailed)
}

// IsMalformedDigest reports whether a stored digest failed to decode.
func IsMalformedDigest(err error) bool { return errors.Is(err, password.ErrMalformedDigest) }
