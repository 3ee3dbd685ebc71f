package chat

import (
	"time"
)

// ConnState is the lifecycle state of a relay connection.
type ConnState = string

const (
	// ConnStateOpen means the connection is accepted but carries no identity yet
	ConnStateOpen ConnState = "open"
	// ConnStateJoined means a principal has been bound to the connection
	ConnStateJoined ConnState = "joined"
	// ConnStateClosed means teardown ran and the session is discarded
	ConnStateClosed ConnState = "closed"
)

// ConnSession tracks the identity binding of a single relay connection.
// It is owned by the connection's reader goroutine and is not safe for
// concurrent use; cross-connection coordination happens in the broker.
type ConnSession struct {
	id          string
	state       ConnState
	principal   string
	displayName string
	boundAt     *time.Time
	transitions map[ConnState]map[ConnState]struct{}
	now         func() time.Time
}

// ConnSessionOption customizes session construction.
type ConnSessionOption func(*ConnSession)

// WithConnSessionClock injects a custom clock (useful for tests).
func WithConnSessionClock(clock func() time.Time) ConnSessionOption {
	return func(s *ConnSession) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewConnSession returns a session in the open, unbound state.
func NewConnSession(id string, opts ...ConnSessionOption) *ConnSession {
	s := &ConnSession{
		id:    id,
		state: ConnStateOpen,
		transitions: map[ConnState]map[ConnState]struct{}{
			ConnStateOpen: {
				ConnStateJoined: {},
				ConnStateClosed: {},
			},
			ConnStateJoined: {
				ConnStateClosed: {},
			},
		},
		now: time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// ID returns the connection identifier.
func (s *ConnSession) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *ConnSession) State() ConnState {
	return s.state
}

// Bind attaches a principal to the connection. It succeeds exactly once;
// a second bind keeps the first principal and returns ErrDuplicateJoin.
func (s *ConnSession) Bind(principal, displayName string) error {
	if s.state == ConnStateClosed {
		return ErrConnectionClosed
	}

	if s.state == ConnStateJoined {
		return ErrDuplicateJoin.WithMetadata(map[string]any{
			"connection": s.id,
			"bound":      s.principal,
		})
	}

	if !s.canTransition(s.state, ConnStateJoined) {
		return ErrDuplicateJoin
	}

	s.principal = principal
	s.displayName = displayName
	now := s.now()
	s.boundAt = &now
	s.state = ConnStateJoined

	return nil
}

// Principal returns the bound identifier. Events arriving before the join
// handshake get ErrUnboundConnection and must be dropped by the caller.
func (s *ConnSession) Principal() (string, error) {
	switch s.state {
	case ConnStateJoined:
		return s.principal, nil
	case ConnStateClosed:
		return "", ErrConnectionClosed
	default:
		return "", ErrUnboundConnection.WithMetadata(map[string]any{
			"connection": s.id,
		})
	}
}

// DisplayName returns the name presented at join time, if any.
func (s *ConnSession) DisplayName() string {
	return s.displayName
}

// BoundAt returns when the principal was bound.
func (s *ConnSession) BoundAt() *time.Time {
	return s.boundAt
}

// Close tears the session down. The first call reports whether a principal
// was bound and which one; later calls return ErrConnectionClosed.
func (s *ConnSession) Close() (principal string, wasBound bool, err error) {
	if s.state == ConnStateClosed {
		return "", false, ErrConnectionClosed
	}

	principal = s.principal
	wasBound = s.state == ConnStateJoined

	s.state = ConnStateClosed
	s.principal = ""
	s.displayName = ""
	s.boundAt = nil

	return principal, wasBound, nil
}

func (s *ConnSession) canTransition(from, to ConnState) bool {
	allowed, ok := s.transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}
