package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNATSURLRequired is returned when the NATS server URL is missing.
var ErrNATSURLRequired = errors.New("messaging: nats url is required")

// NATSConfig configures the NATS implementation.
type NATSConfig struct {
	// URL is the NATS server address.
	URL string
	// Options are passed to the NATS client.
	Options []nats.Option
}

// NATS is a messaging implementation backed by NATS core subjects.
// Core NATS has no redelivery, so Nack is a no-op.
type NATS struct {
	conn *nats.Conn

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed bool
}

// NewNATS constructs a NATS messaging client.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}

	return &NATS{conn: conn}, nil
}

// Close drains subscriptions and closes the NATS connection.
func (n *NATS) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()

	var closeErr error
	for _, sub := range subs {
		closeErr = errors.Join(closeErr, sub.Drain())
	}
	closeErr = errors.Join(closeErr, n.conn.Drain())
	n.conn.Close()

	return closeErr
}

// Publish sends a message to a subject.
func (n *NATS) Publish(ctx context.Context, subject string, msg OutgoingMessage) (PublishResult, error) {
	if subject == "" {
		return PublishResult{}, ErrDestinationRequired
	}
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}

	out := nats.NewMsg(subject)
	out.Data = msg.Body
	for _, h := range msg.Headers {
		out.Header.Add(h.Key, string(h.Value))
	}

	if err := n.conn.PublishMsg(out); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats publish: %w", err)
	}

	return PublishResult{Topic: subject, Timestamp: time.Now()}, nil
}

// Consume subscribes to a subject and blocks until ctx is done. A queue group
// (WithQueueGroup or WithGroup) load-balances messages between replicas.
func (n *NATS) Consume(ctx context.Context, subject string, handler Handler, opts ...ConsumeOption) error {
	if subject == "" {
		return ErrDestinationRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	co := newConsumeOptions(opts...)
	queue := co.queueGroup
	if queue == "" {
		queue = co.group
	}

	work := make(chan *nats.Msg, co.concurrency*2)
	cb := func(m *nats.Msg) {
		select {
		case work <- m:
		case <-ctx.Done():
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if queue != "" {
		sub, err = n.conn.QueueSubscribe(subject, queue, cb)
	} else {
		sub, err = n.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return fmt.Errorf("messaging: nats subscribe: %w", err)
	}

	n.mu.Lock()
	n.subs = append(n.subs, sub)
	n.mu.Unlock()

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case m := <-work:
					msg := &natsMessage{msg: m, received: time.Now()}
					_ = dispatch(ctx, "nats", handler, msg, &msg.responder, co.autoAck)
				}
			}
		})
	}

	<-ctx.Done()
	_ = sub.Unsubscribe()
	wg.Wait()

	return nil
}

type natsMessage struct {
	responder

	msg      *nats.Msg
	received time.Time
}

func (m *natsMessage) Body() []byte { return m.msg.Data }

func (m *natsMessage) Key() []byte { return nil }

func (m *natsMessage) Headers() []Header {
	if len(m.msg.Header) == 0 {
		return nil
	}
	headers := make([]Header, 0, len(m.msg.Header))
	for k, values := range m.msg.Header {
		for _, v := range values {
			headers = append(headers, Header{Key: k, Value: []byte(v)})
		}
	}
	return headers
}

func (m *natsMessage) ID() string { return m.msg.Header.Get(nats.MsgIdHdr) }

func (m *natsMessage) Topic() string { return m.msg.Subject }

func (m *natsMessage) Timestamp() time.Time { return m.received }

func (m *natsMessage) Ack(context.Context) error {
	if !m.first() || m.msg.Reply == "" {
		return nil
	}
	return m.msg.Respond(nil)
}

func (m *natsMessage) Nack(context.Context) error {
	m.first()
	return nil
}
