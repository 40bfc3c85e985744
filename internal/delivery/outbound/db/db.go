package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/otpauth/internal/delivery/entity"
	"github.com/shandysiswandi/otpauth/internal/pkg/goerror"
	"github.com/shandysiswandi/otpauth/internal/pkg/instrument"
	"github.com/shandysiswandi/otpauth/internal/pkg/valueobject"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type DB struct {
	conn *pgxpool.Pool
	ins  instrument.Instrumentation
}

func NewDB(conn *pgxpool.Pool, ins instrument.Instrumentation) *DB {
	return &DB{conn: conn, ins: ins}
}

func (s *DB) mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return goerror.ErrConflict
	}
	return err
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("delivery.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *DB) CreateSMSLog(ctx context.Context, in entity.CreateSMSLog) (err error) {
	ctx, span := s.startSpan(ctx, "CreateSMSLog")
	defer func() { s.endSpan(span, err) }()

	metadata := in.Metadata
	if metadata == nil {
		metadata = valueobject.JSONMap{}
	}

	_, err = s.conn.Exec(ctx, `INSERT INTO delivery_sms_logs
(id, event_id, user_id, phone_number, provider, status, attempts, error, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		in.ID, in.EventID, in.UserID, in.PhoneNumber, in.Provider, in.Status,
		in.Attempts, in.Error, metadata, in.CreatedAt)
	err = s.mapError(err)
	return err
}

// ListSMSLogsByEvent returns every attempt recorded for eventID, oldest first.
func (s *DB) ListSMSLogsByEvent(ctx context.Context, eventID string) (_ []entity.CreateSMSLog, err error) {
	ctx, span := s.startSpan(ctx, "ListSMSLogsByEvent")
	defer func() { s.endSpan(span, err) }()

	rows, err := s.conn.Query(ctx, `SELECT id, event_id, user_id, phone_number, provider, status, attempts, error, metadata, created_at
FROM delivery_sms_logs WHERE event_id = $1 ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.CreateSMSLog
	for rows.Next() {
		var r entity.CreateSMSLog
		if err = rows.Scan(&r.ID, &r.EventID, &r.UserID, &r.PhoneNumber, &r.Provider, &r.Status,
			&r.Attempts, &r.Error, &r.Metadata, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	err = rows.Err()

	return out, err
}
