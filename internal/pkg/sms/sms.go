// Package sms sends text messages through an HTTP SMS provider.
//
// Drivers:
//   - seven: seven.io form API.
//   - clicksend: ClickSend v3 JSON API.
//   - log: writes the message to the structured log (development).
//   - memory: keeps messages in process (tests).
//
// Provider calls are retried with exponential backoff when the failure is
// transient (network error, 429, 5xx).
package sms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Driver names accepted by New.
const (
	DriverSeven     = "seven"
	DriverClickSend = "clicksend"
	DriverLog       = "log"
	DriverMemory    = "memory"
)

var (
	// ErrNotConfigured is returned when the selected provider lacks credentials.
	ErrNotConfigured = errors.New("sms: provider not configured")
	// ErrUnknownDriver is returned by New for an unsupported driver name.
	ErrUnknownDriver = errors.New("sms: unknown driver")
)

// Message is one outgoing SMS.
type Message struct {
	To   string
	Body string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Provider() string
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider string
	Status   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sms: %s responded with status %d", e.Provider, e.Status)
}

// Temporary reports whether retrying may succeed.
func (e *StatusError) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// Options configures New.
type Options struct {
	Seven     SevenConfig
	ClickSend ClickSendConfig
	// Timeout bounds each provider HTTP call. Defaults to 10s.
	Timeout time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// New returns the driver named by driver.
func New(driver string, opts Options) (Sender, error) {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	switch driver {
	case DriverSeven:
		return NewSeven(opts.Seven, client)
	case DriverClickSend:
		return NewClickSend(opts.ClickSend, client)
	case DriverLog, "":
		return NewLog(), nil
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func checkStatus(provider string, resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Provider: provider, Status: resp.StatusCode}
	}
	return nil
}
