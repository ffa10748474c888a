package identity

import (
	"errors"
	"fmt"
)

// Sentinel error kinds (stable for errors.Is and for mapping to API status codes).
var (
	ErrInvalidInput = errors.New("invalid_input")
	ErrConflict     = errors.New("conflict")

	// ErrDuplicateIdentity is the registration conflict on the identity key.
	ErrDuplicateIdentity = fmt.Errorf("duplicate_identity: %w", ErrConflict)

	// ErrStorageUnavailable: the collection could not be read or initialised.
	ErrStorageUnavailable = errors.New("storage_unavailable")
	// ErrStorageWriteFailed: the collection could not be replaced; the prior state is intact.
	ErrStorageWriteFailed = errors.New("storage_write_failed")
	// ErrStoreFailure is the registry-level kind for any storage failure.
	ErrStoreFailure = errors.New("store_failure")
)
