// Package token provides keyed fingerprints for values that must be correlated
// in logs without being disclosed (identities in audit events).
//
// Modes:
// - Default: SHA-256(value) when no HMAC key is configured.
// - Keyed: HMAC-SHA256(value, key) when CREDSTORE_AUDIT_HMAC_KEY is set.
//
// Output is always a 64-char hex string.
package token
