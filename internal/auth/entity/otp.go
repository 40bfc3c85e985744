package entity

import (
	"errors"
	"time"
)

// OTPTTL is how long an issued code stays valid.
const OTPTTL = 5 * time.Minute

var (
	// ErrNoActiveCode means the user has no unused, unexpired code. Expired,
	// consumed and never-issued codes are indistinguishable.
	ErrNoActiveCode = errors.New("auth: no active otp code")
	// ErrCodeMismatch means an active code exists but the candidate is wrong.
	// The active code is left untouched.
	ErrCodeMismatch = errors.New("auth: otp code mismatch")
)

// OTPKind tags what a code may be used for.
type OTPKind string

// OTPKindLogin is the only purpose issued today.
const OTPKindLogin OTPKind = "login"

// OTPCode is a persisted one-time code. The plaintext is never stored.
type OTPCode struct {
	ID        int64
	UserID    int64
	CodeHash  string
	Kind      OTPKind
	CreatedAt time.Time
	ExpiresAt time.Time
	// UsedAt is set once, when the code is consumed or invalidated.
	UsedAt *time.Time
}

// IsValid reports whether the code is unused and not yet expired at now.
func (c OTPCode) IsValid(now time.Time) bool {
	return c.UsedAt == nil && now.Before(c.ExpiresAt)
}

// NewOTPCode is the input for persisting a freshly issued code.
type NewOTPCode struct {
	ID        int64
	UserID    int64
	CodeHash  string
	Kind      OTPKind
	CreatedAt time.Time
	ExpiresAt time.Time
}

// OTPDispatch is a request to deliver a code to the user's phone.
type OTPDispatch struct {
	UserID      int64
	PhoneNumber string
	Text        string
	ExpiresAt   time.Time
}

// Token is a bearer credential minted after a successful verification.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}
