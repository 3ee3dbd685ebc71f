package jwtware_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/goliatone/go-chat/middleware/jwtware"
)

// By default we set an expiration time 1 hour from now
func generateToken(t *testing.T, method jwt.SigningMethod, key []byte, claims jwt.MapClaims) string {
	t.Helper()

	if claims["exp"] == nil {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}

	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

type stubClaims struct {
	subject  string
	userID   string
	username string
}

func (s stubClaims) Subject() string  { return s.subject }
func (s stubClaims) UserID() string   { return s.userID }
func (s stubClaims) Username() string { return s.username }

type stubValidator struct {
	claims jwtware.AuthClaims
	err    error
	seen   string
}

func (s *stubValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	s.seen = tokenString
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func TestJWTWare_HeaderExtraction(t *testing.T) {
	signingKey := []byte("test-secret")

	validToken := generateToken(t, jwt.SigningMethodHS256, signingKey, jwt.MapClaims{
		"sub": "tuxie@example.com",
	})

	t.Run("valid token reaches the handler with claims in locals", func(t *testing.T) {
		validator := &stubValidator{claims: stubClaims{subject: "tuxie@example.com"}}

		middleware := jwtware.New(jwtware.Config{
			SigningKey: jwtware.SigningKey{
				Key:    signingKey,
				JWTAlg: jwt.SigningMethodHS256.Alg(),
			},
			TokenValidator: validator,
			ErrorHandler: func(ctx router.Context, err error) error {
				return err
			},
		})

		ctx := router.NewMockContext()
		ctx.HeadersM["Authorization"] = "Bearer " + validToken
		ctx.On("GetString", "Authorization", "").Return("Bearer " + validToken)
		ctx.On("Locals", "user", mock.Anything).Return(nil)

		handler := middleware(func(c router.Context) error { return c.Next() })

		err := handler(ctx)

		assert.NoError(t, err)
		assert.True(t, ctx.NextCalled)
		assert.Equal(t, validToken, validator.seen)
	})

	t.Run("missing token surfaces the sentinel error", func(t *testing.T) {
		validator := &stubValidator{claims: stubClaims{}}

		var handled error
		middleware := jwtware.New(jwtware.Config{
			SigningKey: jwtware.SigningKey{
				Key:    signingKey,
				JWTAlg: jwt.SigningMethodHS256.Alg(),
			},
			TokenValidator: validator,
			ErrorHandler: func(ctx router.Context, err error) error {
				handled = err
				return err
			},
		})

		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("")

		handler := middleware(func(c router.Context) error { return c.Next() })

		err := handler(ctx)

		assert.Error(t, err)
		assert.True(t, jwtware.IsMissingToken(handled))
		assert.False(t, ctx.NextCalled)
	})

	t.Run("validator failure goes to the error handler", func(t *testing.T) {
		validator := &stubValidator{err: errors.New("token is malformed")}

		var handled error
		middleware := jwtware.New(jwtware.Config{
			SigningKey: jwtware.SigningKey{
				Key:    signingKey,
				JWTAlg: jwt.SigningMethodHS256.Alg(),
			},
			TokenValidator: validator,
			ErrorHandler: func(ctx router.Context, err error) error {
				handled = err
				return err
			},
		})

		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Bearer " + validToken)

		handler := middleware(func(c router.Context) error { return c.Next() })

		err := handler(ctx)

		assert.Error(t, err)
		assert.Contains(t, handled.Error(), "token is malformed")
		assert.False(t, jwtware.IsMissingToken(handled))
	})
}

func TestJWTWare_QueryLookup(t *testing.T) {
	signingKey := []byte("test-secret")

	validToken := generateToken(t, jwt.SigningMethodHS256, signingKey, jwt.MapClaims{
		"sub": "tuxie@example.com",
	})

	validator := &stubValidator{claims: stubClaims{subject: "tuxie@example.com"}}

	middleware := jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			Key:    signingKey,
			JWTAlg: jwt.SigningMethodHS256.Alg(),
		},
		TokenLookup:    "query:auth_token",
		TokenValidator: validator,
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	})

	ctx := router.NewMockContext()
	ctx.QueriesM["auth_token"] = validToken
	ctx.On("Query", "auth_token", "").Return(validToken).Maybe()
	ctx.On("Locals", "user", mock.Anything).Return(nil)

	handler := middleware(func(c router.Context) error { return c.Next() })

	err := handler(ctx)

	assert.NoError(t, err)
	assert.Equal(t, validToken, validator.seen)
}

func TestJWTWare_ValidationListeners(t *testing.T) {
	signingKey := []byte("test-secret")

	validToken := generateToken(t, jwt.SigningMethodHS256, signingKey, jwt.MapClaims{
		"sub": "tuxie@example.com",
	})

	validator := &stubValidator{claims: stubClaims{subject: "tuxie@example.com"}}

	listenerErr := errors.New("listener rejected")
	var handled error

	middleware := jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{
			Key:    signingKey,
			JWTAlg: jwt.SigningMethodHS256.Alg(),
		},
		TokenValidator: validator,
		ValidationListeners: []jwtware.ValidationListener{
			func(ctx router.Context, claims jwtware.AuthClaims) error {
				return listenerErr
			},
		},
		ErrorHandler: func(ctx router.Context, err error) error {
			handled = err
			return err
		},
	})

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("Bearer " + validToken)

	handler := middleware(func(c router.Context) error { return c.Next() })

	err := handler(ctx)

	assert.Error(t, err)
	assert.ErrorIs(t, handled, listenerErr)
	assert.False(t, ctx.NextCalled)
}

func TestGetExtractors(t *testing.T) {
	t.Run("parses a multi source lookup", func(t *testing.T) {
		extractors := jwtware.GetExtractors("header:Authorization,cookie:jwt,query:auth_token")
		assert.Len(t, extractors, 3)
	})

	t.Run("ignores unknown sources", func(t *testing.T) {
		extractors := jwtware.GetExtractors("header:Authorization,carrier-pigeon:token")
		assert.Len(t, extractors, 1)
	})
}
