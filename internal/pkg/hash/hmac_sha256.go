package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSHA256 is a keyed, unsalted digest. The same input always yields the
// same hex output, so it doubles as a lookup key that hides the raw value.
type HMACSHA256 struct {
	secret []byte
}

// NewHMACSHA256 keys the digest with secret.
func NewHMACSHA256(secret string) *HMACSHA256 {
	return &HMACSHA256{secret: []byte(secret)}
}

// Hash returns the hex-encoded HMAC-SHA256 of str.
func (s *HMACSHA256) Hash(str string) ([]byte, error) {
	return hex.AppendEncode(nil, s.sum(str)), nil
}

// Key returns the hex digest of str as a string.
func (s *HMACSHA256) Key(str string) string {
	return hex.EncodeToString(s.sum(str))
}

// Verify reports whether hashed is the hex digest of str.
func (s *HMACSHA256) Verify(hashed, str string) bool {
	raw, err := hex.DecodeString(hashed)
	if err != nil {
		return false
	}
	return hmac.Equal(raw, s.sum(str))
}

func (s *HMACSHA256) sum(str string) []byte {
	m := hmac.New(sha256.New, s.secret)
	m.Write([]byte(str))
	return m.Sum(nil)
}
