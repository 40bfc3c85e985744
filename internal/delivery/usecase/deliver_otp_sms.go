package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/otpauth/internal/delivery/entity"
	"github.com/shandysiswandi/otpauth/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpauth/internal/pkg/sms"
	"github.com/shandysiswandi/otpauth/internal/pkg/valueobject"
)

type DeliverOTPSMSInput struct {
	EventID     string `validate:"required"`
	UserID      int64  `validate:"required,gt=0"`
	PhoneNumber string `validate:"required,phone"`
	Text        string `validate:"required"`
	ExpiresAt   time.Time
}

// DeliverOTPSMS sends one queued login code SMS.
//
// Redelivered events are sent at most once per event id. Invalid and expired
// events are dropped. A provider failure is returned so the broker retries.
func (s *Usecase) DeliverOTPSMS(ctx context.Context, in DeliverOTPSMSInput) error {
	ctx, span := s.startSpan(ctx, "DeliverOTPSMS")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "event_id", in.EventID, "error", err)
		return nil
	}

	if !in.ExpiresAt.IsZero() && !s.clock.Now().Before(in.ExpiresAt) {
		slog.WarnContext(ctx, "otp sms expired before delivery", "event_id", in.EventID, "user_id", in.UserID)
		s.record(ctx, in, entity.DeliveryStatusExpired, nil)
		return nil
	}

	lock := s.cfg.GetSecond("modules.delivery.idempotency_lock_seconds")
	err := s.idempotency.Exec(ctx, "delivery:otp_sms:"+in.EventID, func(ctx context.Context) error {
		return s.sender.Send(ctx, sms.Message{To: in.PhoneNumber, Body: in.Text})
	},
		idempotency.WithLockDuration(lock),
		idempotency.WithStateTTL(in.ExpiresAt.Sub(s.clock.Now())),
		idempotency.WithReleaseOnFailure(),
	)
	switch {
	case errors.Is(err, idempotency.ErrAlreadyCompleted), errors.Is(err, idempotency.ErrAlreadyInProgress):
		slog.InfoContext(ctx, "otp sms already handled", "event_id", in.EventID, "reason", err.Error())
		return nil
	case err != nil:
		slog.ErrorContext(ctx, "failed to send otp sms", "event_id", in.EventID, "user_id", in.UserID, "provider", s.sender.Provider(), "error", err)
		s.record(ctx, in, entity.DeliveryStatusFailed, err)
		return err
	}

	slog.InfoContext(ctx, "otp sms sent", "event_id", in.EventID, "user_id", in.UserID, "provider", s.sender.Provider())
	s.record(ctx, in, entity.DeliveryStatusSent, nil)

	return nil
}

func (s *Usecase) record(ctx context.Context, in DeliverOTPSMSInput, status entity.DeliveryStatus, sendErr error) {
	if s.repoDB == nil {
		return
	}

	row := entity.CreateSMSLog{
		ID:          s.uid.Generate(),
		EventID:     in.EventID,
		UserID:      in.UserID,
		PhoneNumber: in.PhoneNumber,
		Provider:    s.sender.Provider(),
		Status:      status,
		Attempts:    1,
		Metadata:    valueobject.JSONMap{"expires_at": in.ExpiresAt.UTC().Format(time.RFC3339)},
		CreatedAt:   s.clock.Now(),
	}
	if sendErr != nil {
		row.Error = sendErr.Error()
		var se *sms.StatusError
		if errors.As(sendErr, &se) {
			row.Metadata.Set("provider_status", se.Status)
		}
	}

	if err := s.repoDB.CreateSMSLog(ctx, row); err != nil {
		slog.ErrorContext(ctx, "failed to repo create sms log", "event_id", in.EventID, "error", err)
	}
}
