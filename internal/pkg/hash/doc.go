// Package hash provides helpers for hashing and verifying secrets.
//
// Short-lived one-time codes are hashed with a salted algorithm (bcrypt or
// Argon2id) so the plaintext never reaches storage. HMACSHA256 is a keyed,
// deterministic digest and is only suitable for building lookup keys.
package hash
