package chat_test

import (
	"testing"

	chat "github.com/goliatone/go-chat"
	"github.com/stretchr/testify/assert"
)

func TestTokenValidatorFunc(t *testing.T) {
	t.Run("delegates to the wrapped function", func(t *testing.T) {
		validator := chat.TokenValidatorFunc(func(tokenString string) (chat.AuthClaims, error) {
			assert.Equal(t, "raw-token", tokenString)
			return &chat.JWTClaims{UID: "user-1"}, nil
		})

		claims, err := validator.Validate("raw-token")

		assert.NoError(t, err)
		assert.Equal(t, "user-1", claims.UserID())
	})

	t.Run("nil func rejects everything", func(t *testing.T) {
		var validator chat.TokenValidatorFunc

		claims, err := validator.Validate("raw-token")

		assert.Nil(t, claims)
		assert.ErrorIs(t, err, chat.ErrUnableToDecodeSession)
	})
}

func TestMultiTokenValidator(t *testing.T) {
	accept := chat.TokenValidatorFunc(func(tokenString string) (chat.AuthClaims, error) {
		return &chat.JWTClaims{UID: "accepted"}, nil
	})

	malformed := chat.TokenValidatorFunc(func(tokenString string) (chat.AuthClaims, error) {
		return nil, chat.ErrTokenMalformed
	})

	expired := chat.TokenValidatorFunc(func(tokenString string) (chat.AuthClaims, error) {
		return nil, chat.ErrTokenExpired
	})

	t.Run("returns the first successful result", func(t *testing.T) {
		validator := chat.NewMultiTokenValidator(malformed, accept)

		claims, err := validator.Validate("raw-token")

		assert.NoError(t, err)
		assert.Equal(t, "accepted", claims.UserID())
	})

	t.Run("malformed errors fall through to the next validator", func(t *testing.T) {
		validator := chat.NewMultiTokenValidator(malformed, malformed, accept)

		claims, err := validator.Validate("raw-token")

		assert.NoError(t, err)
		assert.NotNil(t, claims)
	})

	t.Run("non malformed errors stop the chain", func(t *testing.T) {
		validator := chat.NewMultiTokenValidator(expired, accept)

		claims, err := validator.Validate("raw-token")

		assert.Nil(t, claims)
		assert.ErrorIs(t, err, chat.ErrTokenExpired)
	})

	t.Run("all malformed returns the last error", func(t *testing.T) {
		validator := chat.NewMultiTokenValidator(malformed, malformed)

		claims, err := validator.Validate("raw-token")

		assert.Nil(t, claims)
		assert.True(t, chat.IsMalformedError(err))
	})

	t.Run("empty validator list rejects", func(t *testing.T) {
		validator := chat.NewMultiTokenValidator(nil, nil)

		claims, err := validator.Validate("raw-token")

		assert.Nil(t, claims)
		assert.ErrorIs(t, err, chat.ErrTokenMalformed)
	})
}
