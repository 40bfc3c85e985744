package usecase

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/pkg/config"
	"github.com/shandysiswandi/otpauth/internal/pkg/instrument"
	"github.com/shandysiswandi/otpauth/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpauth/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

const (
	msgAuthFailed = "Invalid or expired OTP"
	msgSuspended  = "Your account has been suspended"
)

type repoDB interface {
	GetUserByPhone(ctx context.Context, phone string) (*entity.User, error)
	GetUserByID(ctx context.Context, id int64) (*entity.User, error)
}

type otpLifecycle interface {
	RequestCode(ctx context.Context, userID int64) (string, time.Time, error)
	VerifyCode(ctx context.Context, userID int64, candidate string) (*entity.OTPCode, error)
}

type otpDispatcher interface {
	DispatchOTP(ctx context.Context, d entity.OTPDispatch) error
}

type tokenIssuer interface {
	Issue(ctx context.Context, user entity.User) (*entity.Token, error)
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

type keyer interface {
	Key(str string) string
}

type Usecase struct {
	repoDB     repoDB
	lifecycle  otpLifecycle
	dispatcher otpDispatcher
	session    tokenIssuer
	limiter    ratelimit.Limiter
	hmac       keyer
	validator  validator.Validator
	cfg        config.Config
	ins        instrument.Instrumentation
}

type Dependency struct {
	RepoDB     repoDB
	Lifecycle  otpLifecycle
	Dispatcher otpDispatcher
	Session    tokenIssuer
	Limiter    ratelimit.Limiter
	HMAC       keyer
	Validator  validator.Validator
	Config     config.Config
	Instrument instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	limiter := dep.Limiter
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}

	return &Usecase{
		repoDB:     dep.RepoDB,
		lifecycle:  dep.Lifecycle,
		dispatcher: dep.Dispatcher,
		session:    dep.Session,
		limiter:    limiter,
		hmac:       dep.HMAC,
		validator:  dep.Validator,
		cfg:        dep.Config,
		ins:        dep.Instrument,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("auth.usecase").Start(ctx, name)
}

// storeContext bounds a persistence call by modules.auth.store_timeout_seconds.
func (s *Usecase) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, s.cfg.GetSecond("modules.auth.store_timeout_seconds"))
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
