package sms

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpauth/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type instrumented struct {
	Sender
	tracer  trace.Tracer
	counter metric.Int64Counter
}

// WithInstrument records a span and the sms.sent counter for every send.
func WithInstrument(s Sender, ins instrument.Instrumentation) Sender {
	counter, err := ins.Meter("sms").Int64Counter("sms.sent", metric.WithDescription("SMS send attempts by provider and outcome"))
	if err != nil {
		slog.Error("failed to create sms counter", "error", err)
	}

	return &instrumented{Sender: s, tracer: ins.Tracer("sms"), counter: counter}
}

func (i *instrumented) Send(ctx context.Context, msg Message) error {
	ctx, span := i.tracer.Start(ctx, "sms.Send", trace.WithAttributes(attribute.String("sms.provider", i.Provider())))
	defer span.End()

	err := i.Sender.Send(ctx, msg)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if i.counter != nil {
		i.counter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", i.Provider()),
			attribute.String("outcome", outcome),
		))
	}

	return err
}
