package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/shandysiswandi/otpauth/internal/pkg/stacktrace"
)

func callHandlerWithRecover(ctx context.Context, kind string, fn func() error) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			slog.ErrorContext(ctx, "panic in messaging handler", "kind", kind, "panic", rvr, "stack", stacktrace.Loggable(debug.Stack()))
			err = fmt.Errorf("messaging: panic in %s handler: %v", kind, rvr)
		}
	}()

	return fn()
}

// responder makes Ack/Nack idempotent: only the first call reaches the broker.
type responder struct {
	done atomic.Bool
}

func (r *responder) first() bool {
	return !r.done.Swap(true)
}

func (r *responder) responded() bool {
	return r.done.Load()
}

// dispatch runs handler and settles msg according to autoAck unless the
// handler already acked or nacked it.
func dispatch(ctx context.Context, kind string, handler Handler, msg Message, r *responder, autoAck bool) error {
	herr := callHandlerWithRecover(ctx, kind, func() error {
		return handler(ctx, msg)
	})

	if r.responded() || !autoAck {
		return herr
	}

	if herr != nil {
		if err := msg.Nack(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to nack message", "kind", kind, "error", err)
		}
		return herr
	}

	return msg.Ack(ctx)
}
