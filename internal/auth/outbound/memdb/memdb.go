// Package memdb is an in-process user directory and OTP store. It backs local
// runs without Postgres and the usecase tests.
package memdb

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/pkg/goerror"
)

type Store struct {
	mu      sync.RWMutex
	users   map[int64]entity.User
	byPhone map[string]int64
	codes   map[int64]*entity.OTPCode
	byUser  map[int64][]int64

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

func New() *Store {
	return &Store{
		users:   map[int64]entity.User{},
		byPhone: map[string]int64{},
		codes:   map[int64]*entity.OTPCode{},
		byUser:  map[int64][]int64{},
		locks:   map[int64]*sync.Mutex{},
	}
}

// AddUser provisions a user. Returns goerror.ErrConflict when the id or phone
// number is taken.
func (s *Store) AddUser(u entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return goerror.ErrConflict
	}
	if _, ok := s.byPhone[u.PhoneNumber]; ok {
		return goerror.ErrConflict
	}

	s.users[u.ID] = u
	s.byPhone[u.PhoneNumber] = u.ID
	return nil
}

// SetUserStatus changes the status of an existing user.
func (s *Store) SetUserStatus(id int64, status entity.UserStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return goerror.ErrNotFound
	}
	u.Status = status
	s.users[id] = u
	return nil
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPhone[phone]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*entity.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &u, nil
}

func (s *Store) CreateOTPCode(ctx context.Context, in entity.NewOTPCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createLocked(in)
}

func (s *Store) FindActiveOTPCode(ctx context.Context, userID int64, now time.Time) (*entity.OTPCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.findActiveLocked(userID, now)
	if c == nil {
		return nil, goerror.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *Store) InvalidateActiveOTPCodes(ctx context.Context, userID int64, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.invalidateLocked(userID, now), nil
}

// MarkOTPCodeUsed sets used_at only if the code is still unused and reports
// whether this call did it.
func (s *Store) MarkOTPCodeUsed(ctx context.Context, id int64, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.markUsedLocked(id, now), nil
}

// ReissueOTPCode invalidates active codes and creates in as one unit per user.
func (s *Store) ReissueOTPCode(ctx context.Context, userID int64, in entity.NewOTPCode, now time.Time) (int64, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// checked up front so a failed create never leaves codes invalidated
	if _, ok := s.users[in.UserID]; !ok || in.UserID != userID {
		return 0, goerror.ErrNotFound
	}
	if _, ok := s.codes[in.ID]; ok {
		return 0, goerror.ErrConflict
	}

	n := s.invalidateLocked(userID, now)
	if err := s.createLocked(in); err != nil {
		return 0, err
	}

	return n, nil
}

// ConsumeActiveOTPCode finds the active code and marks it used when match
// accepts it, as one unit per user. A rejected match returns
// entity.ErrCodeMismatch and leaves the code active.
func (s *Store) ConsumeActiveOTPCode(ctx context.Context, userID int64, now time.Time, match func(*entity.OTPCode) bool) (*entity.OTPCode, error) {
	unlock := s.lockUser(userID)
	defer unlock()

	active, err := s.FindActiveOTPCode(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	if !match(active) {
		return nil, entity.ErrCodeMismatch
	}

	ok, err := s.MarkOTPCodeUsed(ctx, active.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, goerror.ErrNotFound
	}

	active.UsedAt = &now
	return active, nil
}

// Codes returns a snapshot of every code of the user, oldest first.
func (s *Store) Codes(userID int64) []entity.OTPCode {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.OTPCode, 0, len(s.byUser[userID]))
	for _, id := range s.byUser[userID] {
		c := *s.codes[id]
		if c.UsedAt != nil {
			usedAt := *c.UsedAt
			c.UsedAt = &usedAt
		}
		out = append(out, c)
	}
	return out
}

func (s *Store) lockUser(userID int64) func() {
	s.locksMu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Store) createLocked(in entity.NewOTPCode) error {
	if _, ok := s.codes[in.ID]; ok {
		return goerror.ErrConflict
	}
	if _, ok := s.users[in.UserID]; !ok {
		return goerror.ErrNotFound
	}

	s.codes[in.ID] = &entity.OTPCode{
		ID:        in.ID,
		UserID:    in.UserID,
		CodeHash:  in.CodeHash,
		Kind:      in.Kind,
		CreatedAt: in.CreatedAt,
		ExpiresAt: in.ExpiresAt,
	}
	s.byUser[in.UserID] = append(s.byUser[in.UserID], in.ID)
	return nil
}

// findActiveLocked picks the newest active code, ties broken by highest id.
func (s *Store) findActiveLocked(userID int64, now time.Time) *entity.OTPCode {
	var best *entity.OTPCode
	for _, id := range s.byUser[userID] {
		c := s.codes[id]
		if !c.IsValid(now) {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) ||
			(c.CreatedAt.Equal(best.CreatedAt) && c.ID > best.ID) {
			best = c
		}
	}
	return best
}

func (s *Store) invalidateLocked(userID int64, now time.Time) int64 {
	var n int64
	for _, id := range s.byUser[userID] {
		c := s.codes[id]
		if c.IsValid(now) {
			usedAt := now
			c.UsedAt = &usedAt
			n++
		}
	}
	return n
}

func (s *Store) markUsedLocked(id int64, now time.Time) bool {
	c, ok := s.codes[id]
	if !ok || c.UsedAt != nil {
		return false
	}
	usedAt := now
	c.UsedAt = &usedAt
	return true
}
