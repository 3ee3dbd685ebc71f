// Package memory provides an in-process broker for single-node deployments
// and tests. Fan-out happens over buffered channels guarded by a mutex.
package memory

import (
	"context"
	"sync"

	chat "github.com/goliatone/go-chat"
)

const defaultBuffer = 64

// Broker is a topic registry of in-process subscribers.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[*subscription]struct{}
	buffer int
	closed bool
}

type Option func(*Broker)

// WithBuffer sets the per-subscriber channel buffer.
func WithBuffer(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.buffer = n
		}
	}
}

func New(opts ...Option) *Broker {
	b := &Broker{
		topics: make(map[string]map[*subscription]struct{}),
		buffer: defaultBuffer,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}

	return b
}

var _ chat.Broker = (*Broker)(nil)

// Publish delivers payload to every live subscriber of topic. A subscriber
// that has fallen behind its buffer is skipped rather than blocking the
// publisher.
func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return chat.ErrConnectionClosed
	}

	for sub := range b.topics[topic] {
		select {
		case sub.ch <- payload:
		default:
		}
	}

	return nil
}

// Subscribe registers a consumer on topic. The subscription ends when Close
// is called or the given context is cancelled.
func (b *Broker) Subscribe(ctx context.Context, topic string) (chat.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, chat.ErrConnectionClosed
	}

	sub := &subscription{
		broker: b,
		topic:  topic,
		ch:     make(chan []byte, b.buffer),
	}

	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*subscription]struct{})
	}
	b.topics[topic][sub] = struct{}{}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Close()
		}()
	}

	return sub, nil
}

// Close shuts the broker down and ends every subscription.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.topics {
		for sub := range subs {
			sub.markClosed()
		}
	}
	b.topics = make(map[string]map[*subscription]struct{})

	return nil
}

type subscription struct {
	broker *Broker
	topic  string
	ch     chan []byte
	once   sync.Once
}

var _ chat.Subscription = (*subscription)(nil)

func (s *subscription) C() <-chan []byte {
	return s.ch
}

func (s *subscription) Close() error {
	s.broker.mu.Lock()
	if subs, ok := s.broker.topics[s.topic]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(s.broker.topics, s.topic)
		}
	}
	s.broker.mu.Unlock()

	s.markClosed()
	return nil
}

func (s *subscription) markClosed() {
	s.once.Do(func() {
		close(s.ch)
	})
}
