package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/otpauth/internal/auth/entity"
)

const (
	queryInsertOTPCode = `INSERT INTO auth_otp_codes (id, user_id, code_hash, kind, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	queryFindActiveOTPCode = `SELECT id, user_id, code_hash, kind, created_at, expires_at, used_at
FROM auth_otp_codes
WHERE user_id = $1 AND used_at IS NULL AND expires_at > $2
ORDER BY created_at DESC, id DESC
LIMIT 1`

	queryInvalidateOTPCodes = `UPDATE auth_otp_codes SET used_at = $2
WHERE user_id = $1 AND used_at IS NULL AND expires_at > $2`

	queryMarkOTPCodeUsed = `UPDATE auth_otp_codes SET used_at = $2
WHERE id = $1 AND used_at IS NULL`
)

func createOTPCode(ctx context.Context, q querier, in entity.NewOTPCode) error {
	_, err := q.Exec(ctx, queryInsertOTPCode,
		in.ID, in.UserID, in.CodeHash, string(in.Kind), in.CreatedAt, in.ExpiresAt)
	return err
}

func findActiveOTPCode(ctx context.Context, q querier, userID int64, now time.Time) (*entity.OTPCode, error) {
	var (
		c    entity.OTPCode
		kind string
	)
	err := q.QueryRow(ctx, queryFindActiveOTPCode, userID, now).
		Scan(&c.ID, &c.UserID, &c.CodeHash, &kind, &c.CreatedAt, &c.ExpiresAt, &c.UsedAt)
	if err != nil {
		return nil, err
	}
	c.Kind = entity.OTPKind(kind)

	return &c, nil
}

func invalidateOTPCodes(ctx context.Context, q querier, userID int64, now time.Time) (int64, error) {
	tag, err := q.Exec(ctx, queryInvalidateOTPCodes, userID, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func markOTPCodeUsed(ctx context.Context, q querier, id int64, now time.Time) (bool, error) {
	tag, err := q.Exec(ctx, queryMarkOTPCodeUsed, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *DB) CreateOTPCode(ctx context.Context, in entity.NewOTPCode) (err error) {
	ctx, span := s.startSpan(ctx, "CreateOTPCode")
	defer func() { s.endSpan(span, err) }()

	err = s.mapError(createOTPCode(ctx, s.conn, in))
	return err
}

func (s *DB) FindActiveOTPCode(ctx context.Context, userID int64, now time.Time) (_ *entity.OTPCode, err error) {
	ctx, span := s.startSpan(ctx, "FindActiveOTPCode")
	defer func() { s.endSpan(span, err) }()

	c, err := findActiveOTPCode(ctx, s.conn, userID, now)
	if err != nil {
		return nil, s.mapError(err)
	}

	return c, nil
}

func (s *DB) InvalidateActiveOTPCodes(ctx context.Context, userID int64, now time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "InvalidateActiveOTPCodes")
	defer func() { s.endSpan(span, err) }()

	n, err := invalidateOTPCodes(ctx, s.conn, userID, now)
	if err != nil {
		return 0, s.mapError(err)
	}

	return n, nil
}

// MarkOTPCodeUsed reports whether this call moved the code from unused to used.
func (s *DB) MarkOTPCodeUsed(ctx context.Context, id int64, now time.Time) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "MarkOTPCodeUsed")
	defer func() { s.endSpan(span, err) }()

	ok, err := markOTPCodeUsed(ctx, s.conn, id, now)
	if err != nil {
		return false, s.mapError(err)
	}

	return ok, nil
}

// ReissueOTPCode invalidates the active codes of the user and inserts in, in
// one transaction under the user's advisory lock.
func (s *DB) ReissueOTPCode(ctx context.Context, userID int64, in entity.NewOTPCode, now time.Time) (_ int64, err error) {
	ctx, span := s.startSpan(ctx, "ReissueOTPCode")
	defer func() { s.endSpan(span, err) }()

	var invalidated int64
	err = s.withUserLock(ctx, userID, func(q querier) error {
		n, err := invalidateOTPCodes(ctx, q, userID, now)
		if err != nil {
			return err
		}
		invalidated = n

		return createOTPCode(ctx, q, in)
	})
	if err != nil {
		err = s.mapError(err)
		return 0, err
	}

	return invalidated, nil
}

// ConsumeActiveOTPCode marks the active code used when match accepts it.
// A rejected match returns entity.ErrCodeMismatch and leaves the code active.
func (s *DB) ConsumeActiveOTPCode(ctx context.Context, userID int64, now time.Time, match func(*entity.OTPCode) bool) (_ *entity.OTPCode, err error) {
	ctx, span := s.startSpan(ctx, "ConsumeActiveOTPCode")
	defer func() { s.endSpan(span, err) }()

	var consumed *entity.OTPCode
	err = s.withUserLock(ctx, userID, func(q querier) error {
		c, err := findActiveOTPCode(ctx, q, userID, now)
		if err != nil {
			return err
		}

		if !match(c) {
			return entity.ErrCodeMismatch
		}

		ok, err := markOTPCodeUsed(ctx, q, c.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return pgx.ErrNoRows
		}

		c.UsedAt = &now
		consumed = c
		return nil
	})
	if err != nil {
		err = s.mapError(err)
		return nil, err
	}

	return consumed, nil
}
