package chat

import (
	"context"

	"github.com/goliatone/go-chat/middleware/jwtware"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// UserResolver loads the full user record for a validated principal.
type UserResolver func(ctx context.Context, identifier string) (*User, error)

type RouteAuthenticator struct {
	auth           Authenticator
	cfg            Config
	tokenValidator jwtware.TokenValidator
	userResolver   UserResolver
	Logger         Logger
	ErrorHandler   func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	a := &RouteAuthenticator{
		cfg:    cfg,
		auth:   auther,
		Logger: defLogger{},
	}

	if ts, ok := auther.(interface{ TokenService() TokenService }); ok {
		a.tokenValidator = claimsValidatorAdapter{TokenValidator(ts.TokenService())}
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// WithUserResolver configures the lookup used to attach the full user record
// to the request context after token validation.
func (a *RouteAuthenticator) WithUserResolver(resolver UserResolver) *RouteAuthenticator {
	a.userResolver = resolver
	return a
}

// WithTokenValidator overrides the validator used by the middleware.
func (a *RouteAuthenticator) WithTokenValidator(validator TokenValidator) *RouteAuthenticator {
	a.tokenValidator = claimsValidatorAdapter{validator}
	return a
}

func (a *RouteAuthenticator) Login(ctx context.Context, payload LoginPayload) (string, error) {
	token, err := a.auth.Login(ctx, payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return "", err
	}
	return token, nil
}

// WithAuthentication runs on every request. A missing credential proceeds
// anonymously. A failing credential is logged and then also proceeds
// anonymously, it never turns into a request error here. A valid credential
// attaches claims and, when a resolver is configured, the user record to the
// request context exactly once.
func (a *RouteAuthenticator) WithAuthentication() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler: func(ctx router.Context, err error) error {
			if !jwtware.IsMissingToken(err) {
				a.Logger.Warn(
					"Request token rejected, proceeding as anonymous",
					"error", err.Error(),
					"path", ctx.OriginalURL(),
				)
			}
			return ctx.Next()
		},
		SigningKey: jwtware.SigningKey{
			Key:    []byte(a.cfg.GetSigningKey()),
			JWTAlg: a.cfg.GetSigningMethod(),
		},
		AuthScheme:      a.cfg.GetAuthScheme(),
		ContextKey:      a.cfg.GetContextKey(),
		TokenLookup:     a.cfg.GetTokenLookup(),
		TokenValidator:  a.tokenValidator,
		ContextEnricher: a.enrichContext,
	})
}

func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler: errorHandler,
		SigningKey: jwtware.SigningKey{
			Key:    []byte(cfg.GetSigningKey()),
			JWTAlg: cfg.GetSigningMethod(),
		},
		AuthScheme:      cfg.GetAuthScheme(),
		ContextKey:      cfg.GetContextKey(),
		TokenLookup:     cfg.GetTokenLookup(),
		TokenValidator:  a.tokenValidator,
		ContextEnricher: a.enrichContext,
	})
}

// MakeClientRouteAuthErrorHandler surfaces token failures as structured 401
// responses. With optional set, failures log and the request proceeds.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsSignatureInvalidError(err) {
			richErr = ErrTokenSignatureInvalid
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) enrichContext(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}

	c = WithClaimsContext(c, authClaims)

	if a.userResolver == nil {
		return c
	}

	if _, ok := FromContext(c); ok {
		return c
	}

	user, err := a.userResolver(c, authClaims.Subject())
	if err != nil {
		a.Logger.Warn("failed to resolve user for validated token", "error", err)
		return c
	}

	return WithContext(c, user)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	code := richErr.Code
	if code == 0 {
		code = router.StatusUnauthorized
	}

	return c.JSON(code, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}

// claimsValidatorAdapter bridges the chat TokenValidator to the jwtware one.
type claimsValidatorAdapter struct {
	validator TokenValidator
}

func (c claimsValidatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	if c.validator == nil {
		return nil, ErrUnableToDecodeSession
	}

	claims, err := c.validator.Validate(tokenString)
	if err != nil {
		return nil, err
	}

	return claims, nil
}
