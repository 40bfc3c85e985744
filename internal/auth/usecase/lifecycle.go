package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/pkg/clock"
	"github.com/shandysiswandi/otpauth/internal/pkg/goerror"
	"github.com/shandysiswandi/otpauth/internal/pkg/hash"
	"github.com/shandysiswandi/otpauth/internal/pkg/instrument"
	"github.com/shandysiswandi/otpauth/internal/pkg/otp"
	"github.com/shandysiswandi/otpauth/internal/pkg/uid"
)

type otpStore interface {
	ReissueOTPCode(ctx context.Context, userID int64, code entity.NewOTPCode, now time.Time) (int64, error)
	ConsumeActiveOTPCode(ctx context.Context, userID int64, now time.Time, match func(*entity.OTPCode) bool) (*entity.OTPCode, error)
}

// Lifecycle is the per-user OTP state machine:
// NoActiveCode -> ActiveCode -> (Used | Expired).
//
// It holds no state of its own; the store owns every code row.
type Lifecycle struct {
	store        otpStore
	generator    otp.Generator
	hasher       hash.Hash
	uid          uid.NumberID
	clock        clock.Clocker
	ins          instrument.Instrumentation
	storeTimeout time.Duration
}

type LifecycleDependency struct {
	Store      otpStore
	Generator  otp.Generator
	Hasher     hash.Hash
	UID        uid.NumberID
	Clock      clock.Clocker
	Instrument instrument.Instrumentation
	// StoreTimeout bounds each store call. Zero means no extra bound.
	StoreTimeout time.Duration
}

func NewLifecycle(dep LifecycleDependency) *Lifecycle {
	return &Lifecycle{
		store:        dep.Store,
		generator:    dep.Generator,
		hasher:       dep.Hasher,
		uid:          dep.UID,
		clock:        dep.Clock,
		ins:          dep.Instrument,
		storeTimeout: dep.StoreTimeout,
	}
}

// RequestCode invalidates every active code of the user and issues a new one
// in the same atomic store call. The plaintext is returned exactly once,
// together with the expiry that was stored.
func (l *Lifecycle) RequestCode(ctx context.Context, userID int64) (string, time.Time, error) {
	ctx, span := l.ins.Tracer("auth.usecase").Start(ctx, "Lifecycle.RequestCode")
	defer span.End()

	plain, err := l.generator.Generate()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate otp code: %w", err)
	}

	digest, err := l.hasher.Hash(plain)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("hash otp code: %w", err)
	}

	now := l.clock.Now()
	expiresAt := now.Add(entity.OTPTTL)
	ctx, cancel := withTimeout(ctx, l.storeTimeout)
	defer cancel()

	invalidated, err := l.store.ReissueOTPCode(ctx, userID, entity.NewOTPCode{
		ID:        l.uid.Generate(),
		UserID:    userID,
		CodeHash:  string(digest),
		Kind:      entity.OTPKindLogin,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, now)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("reissue otp code: %w", err)
	}

	slog.DebugContext(ctx, "otp code issued", "user_id", userID, "invalidated", invalidated)

	return plain, expiresAt, nil
}

// VerifyCode consumes the active code when candidate matches it.
//
// Returns entity.ErrNoActiveCode when nothing is active (never issued,
// expired or already used) and entity.ErrCodeMismatch when the candidate is
// wrong; a mismatch leaves the active code usable.
func (l *Lifecycle) VerifyCode(ctx context.Context, userID int64, candidate string) (*entity.OTPCode, error) {
	ctx, span := l.ins.Tracer("auth.usecase").Start(ctx, "Lifecycle.VerifyCode")
	defer span.End()

	ctx, cancel := withTimeout(ctx, l.storeTimeout)
	defer cancel()

	code, err := l.store.ConsumeActiveOTPCode(ctx, userID, l.clock.Now(), func(c *entity.OTPCode) bool {
		return l.hasher.Verify(c.CodeHash, candidate)
	})
	switch {
	case errors.Is(err, goerror.ErrNotFound):
		return nil, entity.ErrNoActiveCode
	case errors.Is(err, entity.ErrCodeMismatch):
		return nil, entity.ErrCodeMismatch
	case err != nil:
		return nil, fmt.Errorf("consume otp code: %w", err)
	}

	return code, nil
}
