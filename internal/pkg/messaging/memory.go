package messaging

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const (
	memoryBuffer        = 256
	memoryMaxRedelivery = 5
)

// Memory is an in-process broker. Every consumer group receives each message
// once; consumers in the same group share the stream. Messages published
// before any group subscribes are held and handed to the first group.
// Nacked messages are redelivered up to 5 times.
type Memory struct {
	mu     sync.Mutex
	topics map[string]*memoryTopic
	closed bool
	done   chan struct{}
	seq    atomic.Uint64
}

type memoryTopic struct {
	groups  map[string]chan *memoryMessage
	backlog []*memoryMessage
}

// NewMemory constructs an in-process broker.
func NewMemory() *Memory {
	return &Memory{
		topics: map[string]*memoryTopic{},
		done:   make(chan struct{}),
	}
}

// Close stops all consumers. Further publishes fail with io.ErrClosedPipe.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Publish delivers msg to every consumer group subscribed to topic.
func (m *Memory) Publish(ctx context.Context, topic string, msg OutgoingMessage) (PublishResult, error) {
	if topic == "" {
		return PublishResult{}, ErrDestinationRequired
	}

	now := time.Now()
	id := strconv.FormatUint(m.seq.Add(1), 10)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return PublishResult{}, io.ErrClosedPipe
	}
	t := m.topic(topic)
	if len(t.groups) == 0 {
		t.backlog = append(t.backlog, m.newMessage(topic, id, now, msg))
		m.mu.Unlock()
		return PublishResult{MessageID: id, Topic: topic, Timestamp: now}, nil
	}
	targets := make([]chan *memoryMessage, 0, len(t.groups))
	for _, ch := range t.groups {
		targets = append(targets, ch)
	}
	m.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- m.newMessage(topic, id, now, msg):
		case <-ctx.Done():
			return PublishResult{}, ctx.Err()
		case <-m.done:
			return PublishResult{}, io.ErrClosedPipe
		}
	}

	return PublishResult{MessageID: id, Topic: topic, Timestamp: now}, nil
}

// Consume subscribes to topic under the configured group and blocks until
// ctx is done or the broker is closed.
func (m *Memory) Consume(ctx context.Context, topic string, handler Handler, opts ...ConsumeOption) error {
	if topic == "" {
		return ErrDestinationRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	co := newConsumeOptions(opts...)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return io.ErrClosedPipe
	}
	t := m.topic(topic)
	ch, ok := t.groups[co.groupName()]
	if !ok {
		ch = make(chan *memoryMessage, memoryBuffer+len(t.backlog))
		for _, pending := range t.backlog {
			ch <- pending
		}
		t.backlog = nil
		t.groups[co.groupName()] = ch
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-m.done:
					return
				case msg := <-ch:
					msg.requeue = func() { m.redeliver(ch, msg) }
					_ = dispatch(ctx, "memory", handler, msg, &msg.responder, co.autoAck)
				}
			}
		})
	}
	wg.Wait()

	return nil
}

func (m *Memory) topic(name string) *memoryTopic {
	t, ok := m.topics[name]
	if !ok {
		t = &memoryTopic{groups: map[string]chan *memoryMessage{}}
		m.topics[name] = t
	}
	return t
}

func (m *Memory) newMessage(topic, id string, ts time.Time, out OutgoingMessage) *memoryMessage {
	return &memoryMessage{
		topic:     topic,
		id:        id,
		timestamp: ts,
		body:      append([]byte(nil), out.Body...),
		key:       append([]byte(nil), out.Key...),
		headers:   append([]Header(nil), out.Headers...),
	}
}

func (m *Memory) redeliver(ch chan *memoryMessage, msg *memoryMessage) {
	if msg.attempt >= memoryMaxRedelivery {
		slog.Warn("dropping message after max redeliveries", "topic", msg.topic, "message_id", msg.id)
		return
	}

	next := &memoryMessage{
		topic:     msg.topic,
		id:        msg.id,
		timestamp: msg.timestamp,
		body:      msg.body,
		key:       msg.key,
		headers:   msg.headers,
		attempt:   msg.attempt + 1,
	}

	go func() {
		select {
		case ch <- next:
		case <-m.done:
		}
	}()
}

type memoryMessage struct {
	responder

	topic     string
	id        string
	timestamp time.Time
	body      []byte
	key       []byte
	headers   []Header
	attempt   int
	requeue   func()
}

func (m *memoryMessage) Body() []byte { return m.body }

func (m *memoryMessage) Key() []byte { return m.key }

func (m *memoryMessage) Headers() []Header { return m.headers }

func (m *memoryMessage) ID() string { return m.id }

func (m *memoryMessage) Topic() string { return m.topic }

func (m *memoryMessage) Timestamp() time.Time { return m.timestamp }

func (m *memoryMessage) Ack(context.Context) error {
	m.first()
	return nil
}

func (m *memoryMessage) Nack(context.Context) error {
	if m.first() && m.requeue != nil {
		m.requeue()
	}
	return nil
}
