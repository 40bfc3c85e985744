package mq

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/pkg/instrument"
	"github.com/shandysiswandi/otpauth/internal/pkg/messaging"
	"github.com/shandysiswandi/otpauth/internal/pkg/uid"
	"github.com/shandysiswandi/otpauth/internal/shared/event"
	"go.opentelemetry.io/otel/codes"
)

// Messaging hands OTP SMS requests to the delivery module through the broker.
type Messaging struct {
	client messaging.Publisher
	uuid   uid.StringID
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, uuid uid.StringID, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, uuid: uuid, ins: ins}
}

// DispatchOTP publishes one OTPSMSMessage keyed by user id, so every message
// of a user lands on the same partition.
func (m *Messaging) DispatchOTP(ctx context.Context, d entity.OTPDispatch) error {
	ctx, span := m.ins.Tracer("auth.outbound.mq").Start(ctx, "DispatchOTP")
	defer span.End()

	body, err := json.Marshal(event.OTPSMSMessage{
		EventID:     m.uuid.Generate(),
		UserID:      d.UserID,
		PhoneNumber: d.PhoneNumber,
		Text:        d.Text,
		ExpiresAt:   d.ExpiresAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, event.OTPSMSDestination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(strconv.FormatInt(d.UserID, 10)),
		Headers: []messaging.Header{{Key: event.HeaderCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
