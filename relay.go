package chat

import (
	"context"
	"encoding/json"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Envelope is the JSON frame exchanged over a relay connection.
type Envelope struct {
	Type    string     `json:"type"`
	Sender  string     `json:"sender,omitempty"`
	Content string     `json:"content,omitempty"`
	Token   string     `json:"token,omitempty"`
	SentAt  *time.Time `json:"sent_at,omitempty"`
}

// Relay applies identity binding rules to inbound events and decides what
// reaches the broker and the message store. The sender on every published
// event comes from the connection's bound principal, never from the payload.
type Relay struct {
	broker    Broker
	messages  Messages
	validator TokenValidator
	topic     string
	logger    Logger
	now       func() time.Time
}

type RelayOption func(*Relay)

// WithRelayTokenValidator lets join payloads carry a token that names the
// principal with a verified claim instead of a declared sender.
func WithRelayTokenValidator(v TokenValidator) RelayOption {
	return func(r *Relay) {
		r.validator = v
	}
}

// WithRelayTopic overrides the broadcast topic.
func WithRelayTopic(topic string) RelayOption {
	return func(r *Relay) {
		if topic != "" {
			r.topic = topic
		}
	}
}

// WithRelayLogger overrides the logger.
func WithRelayLogger(l Logger) RelayOption {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRelayClock injects a custom clock (useful for tests).
func WithRelayClock(clock func() time.Time) RelayOption {
	return func(r *Relay) {
		if clock != nil {
			r.now = clock
		}
	}
}

func NewRelay(broker Broker, messages Messages, opts ...RelayOption) *Relay {
	r := &Relay{
		broker:   broker,
		messages: messages,
		topic:    DefaultTopic,
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// Topic returns the broadcast topic this relay publishes to.
func (r *Relay) Topic() string {
	return r.topic
}

// Subscribe attaches a consumer to the broadcast topic.
func (r *Relay) Subscribe(ctx context.Context) (Subscription, error) {
	return r.broker.Subscribe(ctx, r.topic)
}

// HandleEvent parses a raw frame and dispatches it. A returned error means
// the event was rejected; the connection itself stays usable.
func (r *Relay) HandleEvent(ctx context.Context, sess *ConnSession, raw []byte) error {
	env := &Envelope{}
	if err := json.Unmarshal(raw, env); err != nil {
		return goerrors.Wrap(err, ErrUnableToParseData.Category, ErrUnableToParseData.Message).
			WithTextCode(ErrUnableToParseData.TextCode)
	}

	if !ValidMessageType(env.Type) {
		return ErrUnableToParseData.WithMetadata(map[string]any{
			"type": env.Type,
		})
	}

	switch env.Type {
	case MessageTypeJoin:
		return r.handleJoin(ctx, sess, env)
	case MessageTypeChat:
		return r.handleChat(ctx, sess, env)
	default:
		return r.handleLeave(ctx, sess, env)
	}
}

// handleJoin binds the principal to the connection. A verified token claim
// wins over the declared sender; without a token we take the payload sender
// at face value.
func (r *Relay) handleJoin(ctx context.Context, sess *ConnSession, env *Envelope) error {
	principal := env.Sender
	display := env.Sender

	if env.Token != "" && r.validator != nil {
		claims, err := r.validator.Validate(env.Token)
		if err != nil {
			r.logger.Warn("Join token rejected, using declared sender", "error", err, "connection", sess.ID())
		} else {
			principal = claims.Subject()
			if claims.Username() != "" {
				display = claims.Username()
			}
		}
	}

	if principal == "" {
		return ErrUnableToParseData.WithMetadata(map[string]any{
			"reason": "join event names no sender",
		})
	}

	if err := sess.Bind(principal, display); err != nil {
		return err
	}

	return r.publish(ctx, &Envelope{
		Type:   MessageTypeJoin,
		Sender: principal,
	})
}

func (r *Relay) handleChat(ctx context.Context, sess *ConnSession, env *Envelope) error {
	sender, err := sess.Principal()
	if err != nil {
		return err
	}

	sentAt := r.now()
	record := &ChatMessage{
		Type:    MessageTypeChat,
		Sender:  sender,
		Content: env.Content,
		SentAt:  &sentAt,
	}

	if r.messages != nil {
		if _, err := r.messages.Save(ctx, record); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist chat message")
		}
	}

	return r.publish(ctx, &Envelope{
		Type:    MessageTypeChat,
		Sender:  sender,
		Content: env.Content,
		SentAt:  &sentAt,
	})
}

func (r *Relay) handleLeave(ctx context.Context, sess *ConnSession, env *Envelope) error {
	sender, err := sess.Principal()
	if err != nil {
		return err
	}

	return r.publish(ctx, &Envelope{
		Type:   MessageTypeLeave,
		Sender: sender,
	})
}

// HandleClose runs connection teardown exactly once. When the session held a
// bound principal a LEAVE is synthesized so peers see the departure even if
// the client never sent one.
func (r *Relay) HandleClose(ctx context.Context, sess *ConnSession) error {
	principal, wasBound, err := sess.Close()
	if err != nil {
		return err
	}

	if !wasBound {
		return nil
	}

	return r.publish(ctx, &Envelope{
		Type:   MessageTypeLeave,
		Sender: principal,
	})
}

func (r *Relay) publish(ctx context.Context, env *Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode relay event")
	}

	if err := r.broker.Publish(ctx, r.topic, payload); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to publish relay event")
	}

	return nil
}
