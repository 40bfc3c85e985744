package sms

import (
	"context"
	"time"

	"github.com/shandysiswandi/otpauth/internal/auth/entity"
	"github.com/shandysiswandi/otpauth/internal/pkg/instrument"
	"github.com/shandysiswandi/otpauth/internal/pkg/sms"
	"go.opentelemetry.io/otel/codes"
)

// Direct sends the OTP SMS inside the request.
type Direct struct {
	sender  sms.Sender
	timeout time.Duration
	ins     instrument.Instrumentation
}

// NewDirect bounds each send by timeout. Zero disables the bound.
func NewDirect(sender sms.Sender, timeout time.Duration, ins instrument.Instrumentation) *Direct {
	return &Direct{sender: sender, timeout: timeout, ins: ins}
}

// DispatchOTP detaches from the caller's cancellation so a client that hangs
// up right after asking for a code still gets the SMS.
func (d *Direct) DispatchOTP(ctx context.Context, in entity.OTPDispatch) error {
	ctx, span := d.ins.Tracer("auth.outbound.sms").Start(ctx, "DispatchOTP")
	defer span.End()

	ctx = context.WithoutCancel(ctx)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := d.sender.Send(ctx, sms.Message{To: in.PhoneNumber, Body: in.Text}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
