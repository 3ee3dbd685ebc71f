package chat

import "context"

// DefaultTopic is the shared broadcast topic every relay connection joins.
const DefaultTopic = "chat.broadcast"

// Broker fans relay events out to every subscriber of a topic. The broker
// carries payloads only; the relay decides what gets published.
type Broker interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// Subscription is a live feed of payloads published to one topic.
type Subscription interface {
	// C returns the payload channel. It is closed when the subscription ends.
	C() <-chan []byte
	Close() error
}
