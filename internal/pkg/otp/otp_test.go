package otp

import (
	"errors"
	"regexp"
	"testing"

	"github.com/pquerna/otp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestNumeric_Generate(t *testing.T) {
	t.Parallel()

	gen := NewNumeric(otp.DigitsSix)
	pattern := regexp.MustCompile(`^\d{6}$`)
	seen := make(map[string]struct{})

	for range 10000 {
		code, err := gen.Generate()
		require.NoError(t, err)
		require.Regexp(t, pattern, code)
		seen[code] = struct{}{}
	}

	// 10k draws from a million values collide rarely; a broken source would not.
	assert.Greater(t, len(seen), 9000)
}

func TestNumeric_ZeroPadding(t *testing.T) {
	t.Parallel()

	gen := NewNumeric(otp.DigitsSix)
	assert.Equal(t, "000042", gen.digits.Format(42))
	assert.Equal(t, 6, gen.Length())
}

func TestNumeric_FallbackDigits(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 6, NewNumeric(otp.Digits(7)).Length())
	assert.Equal(t, 8, NewNumeric(otp.DigitsEight).Length())
}

func TestNumeric_SourceFailure(t *testing.T) {
	t.Parallel()

	gen := NewNumeric(otp.DigitsSix)
	gen.rand = failingReader{}

	code, err := gen.Generate()
	require.Error(t, err)
	assert.Empty(t, code)
}
