// Package password hashes and verifies credential secrets.
//
// New digests are produced with Argon2id (default) or bcrypt and are encoded as
// self-describing strings, so verification never needs a side channel:
//   - Argon2id: $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//   - bcrypt:   $2a$<cost>$<salt+hash>
//
// Verify dispatches on the digest prefix, so digests written under either
// algorithm keep verifying after the configured algorithm changes.
// Digests are treated as untrusted input and decoded strictly.
package password
