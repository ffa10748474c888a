package identity

import (
	"context"
	"encoding/json"
)

// Account is one registered credential.
// IMPORTANT: SecretDigest is the encoded hash; the plaintext secret is never stored.
type Account struct {
	ID           string `json:"id"`
	Identity     string `json:"identity"`
	SecretDigest string `json:"secretDigest"`
}

// UnmarshalJSON also accepts legacy records
// ({"id","email","password"}); they are rewritten canonically on the next save.
func (a *Account) UnmarshalJSON(b []byte) error {
	var rec struct {
		ID           string `json:"id"`
		Identity     string `json:"identity"`
		SecretDigest string `json:"secretDigest"`
		Email        string `json:"email"`
		Password     string `json:"password"`
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}

	*a = Account{ID: rec.ID, Identity: rec.Identity, SecretDigest: rec.SecretDigest}
	if a.Identity == "" {
		a.Identity = rec.Email
	}
	if a.SecretDigest == "" {
		a.SecretDigest = rec.Password
	}
	return nil
}

// Store is the credential persistence boundary.
//
// Contract:
//   - Load returns the full collection. Missing storage is initialised empty
//     (idempotent); any real failure is ErrStorageUnavailable, never an empty result.
//   - Save atomically replaces the full collection. Readers observe either the
//     old or the new collection. Failure is ErrStorageWriteFailed and leaves the
//     previous collection readable.
type Store interface {
	Load(ctx context.Context) ([]Account, error)
	Save(ctx context.Context, accounts []Account) error
}

// Updater is implemented by stores that can run a whole load-modify-save cycle
// under their own lock, e.g. shared by several processes.
// If fn returns an error nothing is written and the error is returned unchanged.
type Updater interface {
	Update(ctx context.Context, fn func(accounts []Account) ([]Account, error)) error
}

func findByIdentity(accounts []Account, identity string) (Account, bool) {
	for _, a := range accounts {
		if a.Identity == identity {
			return a, true
		}
	}
	return Account{}, false
}
