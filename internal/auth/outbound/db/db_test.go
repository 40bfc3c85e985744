package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/pkg/containertest"
	"github.com/shandysiswandi/otpauth/internal/pkg/goerror"
	"github.com/shandysiswandi/otpauth/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func newCode(id, userID int64, createdAt time.Time) entity.NewOTPCode {
	return entity.NewOTPCode{
		ID:        id,
		UserID:    userID,
		CodeHash:  "hash",
		Kind:      entity.OTPKindLogin,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(entity.OTPTTL),
	}
}

func countActive(t *testing.T, s *DB, userID int64, now time.Time) int {
	t.Helper()

	var n int
	err := s.conn.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM auth_otp_codes WHERE user_id = $1 AND used_at IS NULL AND expires_at > $2`,
		userID, now).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestDB(t *testing.T) {
	if testing.Short() {
		t.Skip("container test")
	}

	s := NewDB(containertest.Postgres(t), instrument.NewNoop())
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, entity.User{ID: 1, PhoneNumber: "+15551110001", Name: "Ada", Status: entity.UserStatusActive}))
	require.NoError(t, s.CreateUser(ctx, entity.User{ID: 2, PhoneNumber: "+15551110002", Status: entity.UserStatusSuspended}))

	t.Run("Users", func(t *testing.T) {
		u, err := s.GetUserByPhone(ctx, "+15551110001")
		require.NoError(t, err)
		assert.Equal(t, int64(1), u.ID)
		assert.Equal(t, "Ada", u.Name)
		assert.Equal(t, entity.UserStatusActive, u.Status)

		u, err = s.GetUserByID(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, entity.UserStatusSuspended, u.Status)

		_, err = s.GetUserByPhone(ctx, "+15550000000")
		assert.ErrorIs(t, err, goerror.ErrNotFound)

		err = s.CreateUser(ctx, entity.User{ID: 3, PhoneNumber: "+15551110001"})
		assert.ErrorIs(t, err, goerror.ErrConflict)
	})

	t.Run("FindActiveOrdering", func(t *testing.T) {
		require.NoError(t, s.CreateOTPCode(ctx, newCode(100, 2, base)))
		require.NoError(t, s.CreateOTPCode(ctx, newCode(102, 2, base.Add(time.Second))))
		require.NoError(t, s.CreateOTPCode(ctx, newCode(101, 2, base.Add(time.Second))))

		c, err := s.FindActiveOTPCode(ctx, 2, base.Add(2*time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(102), c.ID)
		assert.Equal(t, entity.OTPKindLogin, c.Kind)

		_, err = s.FindActiveOTPCode(ctx, 2, base.Add(time.Hour))
		assert.ErrorIs(t, err, goerror.ErrNotFound)

		n, err := s.InvalidateActiveOTPCodes(ctx, 2, base.Add(2*time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		ok, err := s.MarkOTPCodeUsed(ctx, 100, base)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("CreateForUnknownUser", func(t *testing.T) {
		err := s.CreateOTPCode(ctx, newCode(200, 999, base))
		assert.ErrorIs(t, err, goerror.ErrNotFound)
	})

	t.Run("ReissueAndConsume", func(t *testing.T) {
		_, err := s.ReissueOTPCode(ctx, 1, newCode(300, 1, base), base)
		require.NoError(t, err)
		n, err := s.ReissueOTPCode(ctx, 1, newCode(301, 1, base.Add(time.Second)), base.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = s.ConsumeActiveOTPCode(ctx, 1, base.Add(2*time.Second), func(*entity.OTPCode) bool { return false })
		require.ErrorIs(t, err, entity.ErrCodeMismatch)

		c, err := s.ConsumeActiveOTPCode(ctx, 1, base.Add(2*time.Second), func(c *entity.OTPCode) bool { return c.ID == 301 })
		require.NoError(t, err)
		assert.Equal(t, int64(301), c.ID)

		_, err = s.ConsumeActiveOTPCode(ctx, 1, base.Add(3*time.Second), func(*entity.OTPCode) bool { return true })
		assert.ErrorIs(t, err, goerror.ErrNotFound)
	})

	t.Run("ReissueConflictRollsBack", func(t *testing.T) {
		now := base.Add(time.Minute)
		_, err := s.ReissueOTPCode(ctx, 1, newCode(400, 1, now), now)
		require.NoError(t, err)

		_, err = s.ReissueOTPCode(ctx, 1, newCode(400, 1, now), now)
		require.ErrorIs(t, err, goerror.ErrConflict)
		assert.Equal(t, 1, countActive(t, s, 1, now), "invalidation is rolled back with the failed insert")
	})

	t.Run("ConcurrentReissue", func(t *testing.T) {
		now := base.Add(2 * time.Minute)

		var wg sync.WaitGroup
		for i := range 10 {
			wg.Go(func() {
				_, err := s.ReissueOTPCode(ctx, 1, newCode(int64(500+i), 1, now), now)
				assert.NoError(t, err)
			})
		}
		wg.Wait()

		assert.Equal(t, 1, countActive(t, s, 1, now))
	})

	t.Run("ConcurrentConsume", func(t *testing.T) {
		now := base.Add(3 * time.Minute)
		_, err := s.ReissueOTPCode(ctx, 1, newCode(600, 1, now), now)
		require.NoError(t, err)

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			won int
		)
		for range 10 {
			wg.Go(func() {
				if _, err := s.ConsumeActiveOTPCode(ctx, 1, now, func(*entity.OTPCode) bool { return true }); err == nil {
					mu.Lock()
					won++
					mu.Unlock()
				}
			})
		}
		wg.Wait()

		assert.Equal(t, 1, won)
	})
}
