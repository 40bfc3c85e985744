package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeCodes(f *fixture, userID int64) int {
	n := 0
	for _, c := range f.store.Codes(userID) {
		if c.IsValid(f.clock.Now()) {
			n++
		}
	}
	return n
}

func TestLifecycle_RequestCode(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	code, expiresAt, err := f.lifecycle.RequestCode(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, code, 6)

	codes := f.store.Codes(1)
	require.Len(t, codes, 1)
	assert.NotEqual(t, code, codes[0].CodeHash, "plaintext is never stored")
	assert.Equal(t, epoch.Add(entity.OTPTTL), codes[0].ExpiresAt)
	assert.Equal(t, codes[0].ExpiresAt, expiresAt)
	assert.Equal(t, entity.OTPKindLogin, codes[0].Kind)
}

func TestLifecycle_NewCodeSupersedesOld(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	first, _, err := f.lifecycle.RequestCode(ctx, 1)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	second, _, err := f.lifecycle.RequestCode(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, activeCodes(f, 1))

	if first != second {
		_, err = f.lifecycle.VerifyCode(ctx, 1, first)
		assert.ErrorIs(t, err, entity.ErrCodeMismatch)
	}

	got, err := f.lifecycle.VerifyCode(ctx, 1, second)
	require.NoError(t, err)
	assert.NotNil(t, got.UsedAt)
}

func TestLifecycle_VerifyCode(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, f *fixture) string
		wantErr error
	}{
		{
			name: "NeverIssued",
			prepare: func(*testing.T, *fixture) string {
				return "123456"
			},
			wantErr: entity.ErrNoActiveCode,
		},
		{
			name: "Matches",
			prepare: func(t *testing.T, f *fixture) string {
				code, _, err := f.lifecycle.RequestCode(context.Background(), 1)
				require.NoError(t, err)
				return code
			},
		},
		{
			name: "ValidUntilLastInstant",
			prepare: func(t *testing.T, f *fixture) string {
				code, _, err := f.lifecycle.RequestCode(context.Background(), 1)
				require.NoError(t, err)
				f.clock.Advance(entity.OTPTTL - time.Nanosecond)
				return code
			},
		},
		{
			name: "ExpiredAtTTL",
			prepare: func(t *testing.T, f *fixture) string {
				code, _, err := f.lifecycle.RequestCode(context.Background(), 1)
				require.NoError(t, err)
				f.clock.Advance(entity.OTPTTL)
				return code
			},
			wantErr: entity.ErrNoActiveCode,
		},
		{
			name: "AlreadyUsed",
			prepare: func(t *testing.T, f *fixture) string {
				code, _, err := f.lifecycle.RequestCode(context.Background(), 1)
				require.NoError(t, err)
				_, err = f.lifecycle.VerifyCode(context.Background(), 1, code)
				require.NoError(t, err)
				return code
			},
			wantErr: entity.ErrNoActiveCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "")
			candidate := tt.prepare(t, f)

			got, err := f.lifecycle.VerifyCode(context.Background(), 1, candidate)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, f.clock.Now(), *got.UsedAt)
		})
	}
}

func TestLifecycle_MismatchKeepsCodeUsable(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	code, _, err := f.lifecycle.RequestCode(ctx, 1)
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for range 3 {
		_, err = f.lifecycle.VerifyCode(ctx, 1, wrong)
		require.ErrorIs(t, err, entity.ErrCodeMismatch)
	}

	_, err = f.lifecycle.VerifyCode(ctx, 1, code)
	require.NoError(t, err)
}

func TestLifecycle_ConcurrentVerifySucceedsOnce(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	code, _, err := f.lifecycle.RequestCode(ctx, 1)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for range 10 {
		wg.Go(func() {
			_, err := f.lifecycle.VerifyCode(ctx, 1, code)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, entity.ErrNoActiveCode):
				fail++
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 9, fail)
}

func TestLifecycle_ConcurrentRequestLeavesOneActive(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			_, _, err := f.lifecycle.RequestCode(ctx, 1)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	assert.Equal(t, 1, activeCodes(f, 1))
}

type failingGenerator struct{}

func (failingGenerator) Generate() (string, error) { return "", errors.New("entropy exhausted") }

func TestLifecycle_GeneratorFailureKeepsPreviousCode(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	code, _, err := f.lifecycle.RequestCode(ctx, 1)
	require.NoError(t, err)

	f.lifecycle.generator = failingGenerator{}
	_, _, err = f.lifecycle.RequestCode(ctx, 1)
	require.Error(t, err)

	_, err = f.lifecycle.VerifyCode(ctx, 1, code)
	require.NoError(t, err)
}
