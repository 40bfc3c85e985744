package otp

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/pquerna/otp"
)

// Generator produces numeric one-time codes.
type Generator interface {
	Generate() (string, error)
}

// Numeric draws codes uniformly from [0, 10^digits).
type Numeric struct {
	digits otp.Digits
	max    *big.Int
	rand   io.Reader
}

// NewNumeric returns a generator for 6 or 8 digit codes. Any other value falls
// back to 6 digits.
func NewNumeric(digits otp.Digits) *Numeric {
	if digits != otp.DigitsSix && digits != otp.DigitsEight {
		digits = otp.DigitsSix
	}

	max := big.NewInt(1)
	for range digits.Length() {
		max.Mul(max, big.NewInt(10))
	}

	return &Numeric{digits: digits, max: max, rand: rand.Reader}
}

// Length is the number of digits of every generated code.
func (n *Numeric) Length() int {
	return n.digits.Length()
}

// Generate returns a fresh zero-padded code. It only fails when the secure
// random source is unavailable.
func (n *Numeric) Generate() (string, error) {
	v, err := rand.Int(n.rand, n.max)
	if err != nil {
		return "", fmt.Errorf("otp: read random source: %w", err)
	}

	return n.digits.Format(int32(v.Int64())), nil
}
