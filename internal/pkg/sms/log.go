package sms

import (
	"context"
	"log/slog"
	"sync"
)

// Log writes messages to the default logger instead of sending them.
type Log struct{}

func NewLog() *Log { return &Log{} }

func (*Log) Provider() string { return DriverLog }

func (*Log) Send(ctx context.Context, msg Message) error {
	slog.InfoContext(ctx, "sms message (log driver)", "to", msg.To, "text", msg.Body)
	return nil
}

// Memory keeps every message in process. Safe for concurrent use.
type Memory struct {
	mu   sync.Mutex
	sent []Message
	fail error
}

func NewMemory() *Memory { return &Memory{} }

func (*Memory) Provider() string { return DriverMemory }

func (m *Memory) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, msg)
	return nil
}

// FailWith makes subsequent sends return err. nil restores success.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// Sent returns a copy of every message sent so far.
func (m *Memory) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// Last returns the latest message sent to phone.
func (m *Memory) Last(phone string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].To == phone {
			return m.sent[i], true
		}
	}
	return Message{}, false
}
