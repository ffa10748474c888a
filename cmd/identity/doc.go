// Package identity implements the credential registry: the account collection,
// its persistence contract, and the register/authenticate protocol on top of it.
//
// Stores own the persisted collection; the Registry re-reads it on every call
// and never caches accounts between calls.
package identity
