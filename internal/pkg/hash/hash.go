package hash

import "fmt"

// Hash hashes secrets for storage and verifies plaintext against a stored digest.
//
// Implementations that embed a random salt in the digest (bcrypt, Argon2id)
// produce a different output for every call with the same plaintext.
type Hash interface {
	Hash(plaintext string) ([]byte, error)
	Verify(hashed, plaintext string) bool
}

// Algorithm names accepted by New.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// New returns a salted hasher for algorithm. cost is only used by bcrypt.
func New(algorithm string, cost int, pepper string) (Hash, error) {
	switch algorithm {
	case AlgorithmBcrypt, "":
		return NewBcrypt(cost, pepper), nil
	case AlgorithmArgon2id:
		return NewArgon2id(pepper), nil
	default:
		return nil, fmt.Errorf("hash: unsupported algorithm %q", algorithm)
	}
}
