package sms

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryConfig bounds provider retries.
type RetryConfig struct {
	// MaxRetries is the number of attempts after the first one.
	MaxRetries uint64
	// Base is the first backoff interval, doubled per attempt.
	Base time.Duration
	// Cap limits a single backoff interval.
	Cap time.Duration
}

type retrying struct {
	Sender
	cfg RetryConfig
}

// WithRetry wraps s so transient failures are retried with jittered
// exponential backoff. Permanent failures (4xx, missing config) return at once.
func WithRetry(s Sender, cfg RetryConfig) Sender {
	if cfg.Base <= 0 {
		cfg.Base = 200 * time.Millisecond
	}
	if cfg.Cap <= 0 {
		cfg.Cap = 2 * time.Second
	}
	return &retrying{Sender: s, cfg: cfg}
}

func (r *retrying) Send(ctx context.Context, msg Message) error {
	b := retry.NewExponential(r.cfg.Base)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(r.cfg.Cap, b)
	b = retry.WithMaxRetries(r.cfg.MaxRetries, b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := r.Sender.Send(ctx, msg)
		if err == nil || !isTransient(err) {
			return err
		}

		slog.WarnContext(ctx, "sms send failed, retrying", "provider", r.Provider(), "attempt", attempt, "error", err)
		return retry.RetryableError(err)
	})
}

func isTransient(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	return !errors.Is(err, ErrNotConfigured) && !errors.Is(err, context.Canceled)
}
