// Package redis provides a Broker backed by Redis pub/sub so multiple relay
// nodes can share one broadcast topic.
package redis

import (
	"context"
	"sync"

	chat "github.com/goliatone/go-chat"
	"github.com/redis/go-redis/v9"
)

// Broker publishes and subscribes through a Redis client.
type Broker struct {
	client *redis.Client
}

// New wraps an existing client. The caller owns the client's lifecycle.
func New(client *redis.Client) *Broker {
	return &Broker{client: client}
}

// NewFromAddr dials addr and returns a broker plus the owned client.
func NewFromAddr(addr string) (*Broker, *redis.Client) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return New(client), client
}

var _ chat.Broker = (*Broker)(nil)

func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.client.Publish(ctx, topic, payload).Err()
}

func (b *Broker) Subscribe(ctx context.Context, topic string) (chat.Subscription, error) {
	pubsub := b.client.Subscribe(ctx, topic)

	// Block until the server confirms the subscription so publishes that
	// happen after Subscribe returns are guaranteed to be delivered.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	sub := &subscription{
		pubsub: pubsub,
		ch:     make(chan []byte),
	}

	go sub.pump(ctx)

	return sub, nil
}

type subscription struct {
	pubsub *redis.PubSub
	ch     chan []byte
	once   sync.Once
}

var _ chat.Subscription = (*subscription)(nil)

func (s *subscription) pump(ctx context.Context) {
	defer close(s.ch)

	msgs := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.ch <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *subscription) C() <-chan []byte {
	return s.ch
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		err = s.pubsub.Close()
	})
	return err
}
