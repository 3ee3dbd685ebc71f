package chat

import (
	"context"

	"github.com/goliatone/go-router"
)

// RFC 6455 text frame opcode
const wsTextMessage = 1

// WSTokenValidator implements go-router's WSTokenValidator interface
// using the chat TokenService for seamless WebSocket authentication
type WSTokenValidator struct {
	tokenService TokenService
}

// NewWSTokenValidator creates a new WebSocket token validator using the provided TokenService
func NewWSTokenValidator(tokenService TokenService) *WSTokenValidator {
	return &WSTokenValidator{
		tokenService: tokenService,
	}
}

// Validate validates a token string and returns WebSocket-compatible auth claims
func (w *WSTokenValidator) Validate(tokenString string) (router.WSAuthClaims, error) {
	claims, err := w.tokenService.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &WSAuthClaimsAdapter{claims: claims}, nil
}

// WSAuthClaimsAdapter adapts chat AuthClaims to go-router's WSAuthClaims interface
type WSAuthClaimsAdapter struct {
	claims AuthClaims
}

// Subject returns the subject claim
func (w *WSAuthClaimsAdapter) Subject() string {
	return w.claims.Subject()
}

// UserID returns the user ID
func (w *WSAuthClaimsAdapter) UserID() string {
	return w.claims.UserID()
}

// NewWSAuthMiddleware creates a fully configured WebSocket authentication middleware
// using the chat TokenService. This is a convenience for callers that want the
// whole socket gated on a token instead of the per-connection join handshake.
func (s *Auther) NewWSAuthMiddleware(config ...router.WSAuthConfig) router.WebSocketMiddleware {
	validator := NewWSTokenValidator(s.tokenService)

	var cfg router.WSAuthConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	cfg.TokenValidator = validator

	return router.NewWSAuth(cfg)
}

// WSAuthClaimsFromContext retrieves auth claims stored by the socket middleware.
func WSAuthClaimsFromContext(ctx context.Context) (AuthClaims, bool) {
	wsAuthClaims, ok := router.WSAuthClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}

	if adapter, ok := wsAuthClaims.(*WSAuthClaimsAdapter); ok {
		return adapter.claims, true
	}

	return nil, false
}

// ChatSocketHandler returns the per-connection handler for the relay endpoint.
// Each connection runs a read loop feeding the relay and a write loop draining
// the broadcast subscription. Rejected events are logged and dropped; only a
// transport failure ends the connection.
func ChatSocketHandler(relay *Relay, logger Logger) func(ctx context.Context, client router.WSClient) error {
	if logger == nil {
		logger = defLogger{}
	}

	return func(ctx context.Context, client router.WSClient) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		sess := NewConnSession(client.ID())

		sub, err := relay.Subscribe(ctx)
		if err != nil {
			logger.Error("chat socket subscribe failed", "error", err, "connection", client.ID())
			return err
		}
		defer sub.Close()

		defer func() {
			if err := relay.HandleClose(context.WithoutCancel(ctx), sess); err != nil {
				logger.Warn("chat socket teardown", "error", err, "connection", client.ID())
			}
		}()

		writeDone := make(chan struct{})
		go func() {
			defer close(writeDone)
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-sub.C():
					if !ok {
						return
					}
					if err := client.WriteMessage(wsTextMessage, payload); err != nil {
						logger.Warn("chat socket write failed", "error", err, "connection", client.ID())
						cancel()
						return
					}
				}
			}
		}()

		for {
			_, raw, err := client.ReadMessage()
			if err != nil {
				cancel()
				<-writeDone
				return nil
			}

			if err := relay.HandleEvent(ctx, sess, raw); err != nil {
				logger.Warn(
					"chat socket event rejected",
					"error", err,
					"connection", client.ID(),
					"state", sess.State(),
				)
			}
		}
	}
}
