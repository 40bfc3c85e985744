package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/auth/outbound/memdb"
	"github.com/shandysiswandi/otpauth/internal/pkg/clock"
	"github.com/shandysiswandi/otpauth/internal/pkg/config"
	"github.com/shandysiswandi/otpauth/internal/pkg/goerror"
	"github.com/shandysiswandi/otpauth/internal/pkg/hash"
	"github.com/shandysiswandi/otpauth/internal/pkg/instrument"
	otpgen "github.com/shandysiswandi/otpauth/internal/pkg/otp"
	"github.com/shandysiswandi/otpauth/internal/pkg/ratelimit"
	"github.com/shandysiswandi/otpauth/internal/pkg/uid"
	"github.com/shandysiswandi/otpauth/internal/pkg/validator"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	phoneActive    = "+15551230001"
	phoneSuspended = "+15551230002"
	phoneUnknown   = "+15551239999"
)

var epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []entity.OTPDispatch
	err  error
}

func (f *fakeDispatcher) DispatchOTP(_ context.Context, d entity.OTPDispatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, d)
	return nil
}

// lastCode pulls the 6-digit code out of the latest rendered text.
func (f *fakeDispatcher) lastCode(t *testing.T) string {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	require.NotEmpty(t, f.sent)
	text := f.sent[len(f.sent)-1].Text
	for i := 0; i+6 <= len(text); i++ {
		if isDigits(text[i : i+6]) {
			return text[i : i+6]
		}
	}
	t.Fatalf("no code in %q", text)
	return ""
}

func isDigits(s string) bool {
	return strings.Trim(s, "0123456789") == ""
}

type fakeSession struct {
	mu      sync.Mutex
	issued  []entity.User
	revoked map[string]time.Time
	err     error
}

func (f *fakeSession) Issue(_ context.Context, u entity.User) (*entity.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	f.issued = append(f.issued, u)
	return &entity.Token{Value: "token-" + u.PhoneNumber, ID: "jti", ExpiresAt: epoch.Add(time.Hour)}, nil
}

func (f *fakeSession) Revoke(_ context.Context, id string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return f.err
	}
	if f.revoked == nil {
		f.revoked = map[string]time.Time{}
	}
	f.revoked[id] = exp
	return nil
}

// countingLimiter is an in-process fixed window without expiry.
type countingLimiter struct {
	mu   sync.Mutex
	hits map[string]int
	err  error
}

func (c *countingLimiter) Allow(_ context.Context, key string, rule ratelimit.Rule) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return true, c.err
	}
	if c.hits == nil {
		c.hits = map[string]int{}
	}
	c.hits[key]++
	return c.hits[key] <= rule.Limit, nil
}

type brokenStore struct{ err error }

func (b brokenStore) GetUserByPhone(context.Context, string) (*entity.User, error) { return nil, b.err }
func (b brokenStore) GetUserByID(context.Context, int64) (*entity.User, error)     { return nil, b.err }

type fixture struct {
	uc         *Usecase
	store      *memdb.Store
	lifecycle  *Lifecycle
	dispatcher *fakeDispatcher
	session    *fakeSession
	limiter    *countingLimiter
	clock      *clock.Manual
}

func newFixture(t *testing.T, yaml string) *fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	require.NoError(t, err)

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	sf, err := uid.NewSnowflakeWithNode(1)
	require.NoError(t, err)

	store := memdb.New()
	require.NoError(t, store.AddUser(entity.User{ID: 1, PhoneNumber: phoneActive, Name: "Ada", Status: entity.UserStatusActive}))
	require.NoError(t, store.AddUser(entity.User{ID: 2, PhoneNumber: phoneSuspended, Name: "Bob", Status: entity.UserStatusSuspended}))

	clk := clock.NewManual(epoch)
	ins := instrument.NewNoop()

	lc := NewLifecycle(LifecycleDependency{
		Store:      store,
		Generator:  otpgen.NewNumeric(otp.DigitsSix),
		Hasher:     hash.NewBcrypt(bcrypt.MinCost, ""),
		UID:        sf,
		Clock:      clk,
		Instrument: ins,
	})

	f := &fixture{
		store:      store,
		lifecycle:  lc,
		dispatcher: &fakeDispatcher{},
		session:    &fakeSession{},
		limiter:    &countingLimiter{},
		clock:      clk,
	}
	f.uc = New(Dependency{
		RepoDB:     store,
		Lifecycle:  lc,
		Dispatcher: f.dispatcher,
		Session:    f.session,
		Limiter:    f.limiter,
		HMAC:       hash.NewHMACSHA256("test-secret"),
		Validator:  v,
		Config:     cfg,
		Instrument: ins,
	})

	return f
}

func requireGoError(t *testing.T, err error, status int, msg string) {
	t.Helper()

	var ge *goerror.Error
	require.True(t, errors.As(err, &ge), "want *goerror.Error, got %v", err)
	require.Equal(t, status, ge.StatusCode())
	if msg != "" {
		require.Equal(t, msg, ge.Msg())
	}
}
