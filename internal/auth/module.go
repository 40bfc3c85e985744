package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/auth/inbound"
	"github.com/shandysiswandi/otpauth/internal/auth/outbound/db"
	"github.com/shandysiswandi/otpauth/internal/auth/outbound/memdb"
	"github.com/shandysiswandi/otpauth/internal/auth/outbound/mq"
	"github.com/shandysiswandi/otpauth/internal/auth/outbound/session"
	authsms "github.com/shandysiswandi/otpauth/internal/auth/outbound/sms"
	"github.com/shandysiswandi/otpauth/internal/auth/usecase"
	"github.com/shandysiswandi/otpauth/internal/pkg/clock"
	"github.com/shandysiswandi/otpauth/internal/pkg/config"
	"github.com/shandysiswandi/otpauth/internal/pkg/goerror"
	"github.com/shandysiswandi/otpauth/internal/pkg/hash"
	"github.com/shandysiswandi/otpauth/internal/pkg/instrument"
	"github.com/shandysiswandi/otpauth/internal/pkg/jwt"
	"github.com/shandysiswandi/otpauth/internal/pkg/messaging"
	"github.com/shandysiswandi/otpauth/internal/pkg/otp"
	"github.com/shandysiswandi/otpauth/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpauth/internal/pkg/router"
	"github.com/shandysiswandi/otpauth/internal/pkg/sms"
	"github.com/shandysiswandi/otpauth/internal/pkg/uid"
	"github.com/shandysiswandi/otpauth/internal/pkg/validator"
)

// Store and dispatch modes.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	DispatchDirect = "direct"
	DispatchQueue  = "queue"
)

var ErrUnknownMode = errors.New("auth: unknown mode")

// Dependency wires the module. DBConn is only needed by the postgres store,
// Messaging by queued dispatch and SMS by direct dispatch.
type Dependency struct {
	Ctx        context.Context
	DBConn     *pgxpool.Pool
	Messaging  messaging.Publisher
	SMS        sms.Sender
	Router     *router.Router             `validate:"required"`
	Limiter    ratelimit.Limiter          `validate:"required"`
	Denylist   tokenRevoker               `validate:"required"`
	JWT        jwt.JWT                    `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	UUID       uid.StringID               `validate:"required"`
	HMAC       *hash.HMACSHA256           `validate:"required"`
	CodeHasher hash.Hash                  `validate:"required"`
	Generator  otp.Generator              `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
}

type tokenRevoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
}

type userStore interface {
	GetUserByPhone(ctx context.Context, phone string) (*entity.User, error)
	GetUserByID(ctx context.Context, id int64) (*entity.User, error)
	ReissueOTPCode(ctx context.Context, userID int64, code entity.NewOTPCode, now time.Time) (int64, error)
	ConsumeActiveOTPCode(ctx context.Context, userID int64, now time.Time, match func(*entity.OTPCode) bool) (*entity.OTPCode, error)
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	store, seed, err := newStore(dep)
	if err != nil {
		return err
	}

	if err := seedUsers(dep, seed); err != nil {
		return err
	}

	dispatcher, err := newDispatcher(dep)
	if err != nil {
		return err
	}

	storeTimeout := dep.Config.GetSecond("modules.auth.store_timeout_seconds")

	lifecycle := usecase.NewLifecycle(usecase.LifecycleDependency{
		Store:        store,
		Generator:    dep.Generator,
		Hasher:       dep.CodeHasher,
		UID:          dep.UID,
		Clock:        dep.Clock,
		Instrument:   dep.Instrument,
		StoreTimeout: storeTimeout,
	})

	uc := usecase.New(usecase.Dependency{
		RepoDB:     store,
		Lifecycle:  lifecycle,
		Dispatcher: dispatcher,
		Session:    session.New(dep.JWT, dep.Denylist, dep.Instrument),
		Limiter:    dep.Limiter,
		HMAC:       dep.HMAC,
		Validator:  dep.Validator,
		Config:     dep.Config,
		Instrument: dep.Instrument,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, inbound.Throttles{
		RequestOTP: ratelimit.Rule{
			Limit:  dep.Config.GetInt("modules.auth.rate_limit.ip_limit"),
			Window: dep.Config.GetSecond("modules.auth.rate_limit.ip_window_seconds"),
		},
		VerifyOTP: ratelimit.Rule{
			Limit:  dep.Config.GetInt("modules.auth.rate_limit.verify_ip_limit"),
			Window: dep.Config.GetSecond("modules.auth.rate_limit.verify_ip_window_seconds"),
		},
	})

	return nil
}

func newStore(dep Dependency) (userStore, func(context.Context, entity.User) error, error) {
	switch mode := dep.Config.GetString("modules.auth.store"); mode {
	case StorePostgres, "":
		if dep.DBConn == nil {
			return nil, nil, errors.New("auth: postgres store requires a database connection")
		}
		s := db.NewDB(dep.DBConn, dep.Instrument)
		return s, s.CreateUser, nil
	case StoreMemory:
		s := memdb.New()
		return s, func(_ context.Context, u entity.User) error { return s.AddUser(u) }, nil
	default:
		return nil, nil, fmt.Errorf("%w: store %q", ErrUnknownMode, mode)
	}
}

type otpDispatcher interface {
	DispatchOTP(ctx context.Context, d entity.OTPDispatch) error
}

func newDispatcher(dep Dependency) (otpDispatcher, error) {
	switch mode := dep.Config.GetString("modules.auth.sms_dispatch"); mode {
	case DispatchDirect, "":
		if dep.SMS == nil {
			return nil, errors.New("auth: direct sms dispatch requires an sms sender")
		}
		return authsms.NewDirect(dep.SMS, dep.Config.GetSecond("modules.auth.sms.timeout_seconds"), dep.Instrument), nil
	case DispatchQueue:
		if dep.Messaging == nil {
			return nil, errors.New("auth: queued sms dispatch requires messaging")
		}
		return mq.NewMessaging(dep.Messaging, dep.UUID, dep.Instrument), nil
	default:
		return nil, fmt.Errorf("%w: sms_dispatch %q", ErrUnknownMode, mode)
	}
}

// seedUsers provisions modules.auth.seed_users, entries formatted as
// "<phone>|<name>[|suspended]". Existing phone numbers are left as they are.
func seedUsers(dep Dependency, create func(context.Context, entity.User) error) error {
	ctx := dep.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	for _, entry := range dep.Config.GetArray("modules.auth.seed_users") {
		parts := strings.Split(entry, "|")
		u := entity.User{
			ID:          dep.UID.Generate(),
			PhoneNumber: strings.TrimSpace(parts[0]),
			Status:      entity.UserStatusActive,
			CreatedAt:   dep.Clock.Now(),
			UpdatedAt:   dep.Clock.Now(),
		}
		if len(parts) > 1 {
			u.Name = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 && strings.TrimSpace(parts[2]) == entity.UserStatusSuspended.String() {
			u.Status = entity.UserStatusSuspended
		}

		err := create(ctx, u)
		if errors.Is(err, goerror.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("auth: seed user %s: %w", u.PhoneNumber, err)
		}
		slog.InfoContext(ctx, "seeded user", "user_id", u.ID, "status", u.Status.String())
	}

	return nil
}
