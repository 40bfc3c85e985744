package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/otpauth/internal/delivery/usecase"
	"github.com/shandysiswandi/otpauth/internal/pkg/instrument"
	"github.com/shandysiswandi/otpauth/internal/pkg/messaging"
	"github.com/shandysiswandi/otpauth/internal/pkg/uid"
	"github.com/shandysiswandi/otpauth/internal/shared/event"
)

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, msg messaging.Message) context.Context {
	if cID := messaging.HeaderValue(msg, event.HeaderCorrelationID); cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

// DeliverOTPSMS handles event.OTPSMSMessage. The body carries the plaintext
// code and is never logged.
func (h *MQHandler) DeliverOTPSMS(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg)

	ctx, span := h.ins.Tracer("delivery.inbound.mq").Start(ctx, "DeliverOTPSMS")
	defer span.End()

	slog.InfoContext(ctx, "consume: otp sms", "message_id", msg.ID(), "topic", msg.Topic())

	var payload event.OTPSMSMessage
	if err := json.Unmarshal(msg.Body(), &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of otp sms", "message_id", msg.ID(), "error", err)
		return nil
	}

	if err := h.uc.DeliverOTPSMS(ctx, usecase.DeliverOTPSMSInput{
		EventID:     payload.EventID,
		UserID:      payload.UserID,
		PhoneNumber: payload.PhoneNumber,
		Text:        payload.Text,
		ExpiresAt:   payload.ExpiresAt,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to deliver otp sms", "event_id", payload.EventID, "error", err)
		return err
	}

	return nil
}
