package chat_test

import (
	"testing"

	chat "github.com/goliatone/go-chat"
	"github.com/stretchr/testify/assert"
)

func TestHashPassword(t *testing.T) {
	t.Run("hashes a password", func(t *testing.T) {
		hash, err := chat.HashPassword("sup3r-secret!")

		assert.NoError(t, err)
		assert.NotEmpty(t, hash)
		assert.NotEqual(t, "sup3r-secret!", hash)
	})

	t.Run("rejects an empty password", func(t *testing.T) {
		hash, err := chat.HashPassword("")

		assert.Empty(t, hash)
		assert.ErrorIs(t, err, chat.ErrNoEmptyString)
	})
}

func TestComparePasswordAndHash(t *testing.T) {
	hash, err := chat.HashPassword("sup3r-secret!")
	assert.NoError(t, err)

	t.Run("accepts the matching password", func(t *testing.T) {
		assert.NoError(t, chat.ComparePasswordAndHash("sup3r-secret!", hash))
	})

	t.Run("rejects a different password", func(t *testing.T) {
		err := chat.ComparePasswordAndHash("not-the-password", hash)
		assert.ErrorIs(t, err, chat.ErrMismatchedHashAndPassword)
	})

	t.Run("rejects a garbage hash", func(t *testing.T) {
		err := chat.ComparePasswordAndHash("sup3r-secret!", "not-a-bcrypt-hash")
		assert.Error(t, err)
	})
}

func TestRandomPasswordHash(t *testing.T) {
	h1 := chat.RandomPasswordHash()
	h2 := chat.RandomPasswordHash()

	assert.NotEmpty(t, h1)
	assert.NotEmpty(t, h2)
	assert.NotEqual(t, h1, h2)
}
