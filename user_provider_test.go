package chat_test

import (
	"context"
	"testing"
	"time"

	chat "github.com/goliatone/go-chat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockUserTracker implements chat.UserTracker for testing
type MockUserTracker struct {
	mock.Mock
}

func (m *MockUserTracker) GetByIdentifier(ctx context.Context, identifier string) (*chat.User, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chat.User), args.Error(1)
}

func (m *MockUserTracker) TrackAttemptedLogin(ctx context.Context, user *chat.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserTracker) TrackSucccessfulLogin(ctx context.Context, user *chat.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func makeTestUser(t *testing.T, password string) *chat.User {
	t.Helper()

	hash, err := chat.HashPassword(password)
	assert.NoError(t, err)

	return &chat.User{
		ID:           uuid.New(),
		Username:     "tuxie",
		Email:        "tuxie@example.com",
		PasswordHash: hash,
	}
}

func TestUserProvider_VerifyIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("returns identity for valid credentials", func(t *testing.T) {
		user := makeTestUser(t, "sup3r-secret!")

		store := &MockUserTracker{}
		store.On("GetByIdentifier", ctx, "tuxie@example.com").Return(user, nil)
		store.On("TrackSucccessfulLogin", ctx, user).Return(nil)

		provider := chat.NewUserProvider(store)

		identity, err := provider.VerifyIdentity(ctx, "tuxie@example.com", "sup3r-secret!")

		assert.NoError(t, err)
		assert.NotNil(t, identity)
		assert.Equal(t, user.ID.String(), identity.ID())
		assert.Equal(t, "tuxie", identity.Username())
		assert.Equal(t, "tuxie@example.com", identity.Email())

		store.AssertExpectations(t)
	})

	t.Run("unknown identifier reads as invalid credentials", func(t *testing.T) {
		store := &MockUserTracker{}
		store.On("GetByIdentifier", ctx, "nobody@example.com").Return(nil, chat.ErrIdentityNotFound)

		provider := chat.NewUserProvider(store)

		identity, err := provider.VerifyIdentity(ctx, "nobody@example.com", "whatever")

		assert.Nil(t, identity)
		assert.ErrorIs(t, err, chat.ErrMismatchedHashAndPassword)

		store.AssertExpectations(t)
	})

	t.Run("wrong password reads as invalid credentials and tracks the attempt", func(t *testing.T) {
		user := makeTestUser(t, "sup3r-secret!")

		store := &MockUserTracker{}
		store.On("GetByIdentifier", ctx, "tuxie@example.com").Return(user, nil)
		store.On("TrackAttemptedLogin", ctx, user).Return(nil)

		provider := chat.NewUserProvider(store)

		identity, err := provider.VerifyIdentity(ctx, "tuxie@example.com", "wrong-password")

		assert.Nil(t, identity)
		assert.ErrorIs(t, err, chat.ErrMismatchedHashAndPassword)

		store.AssertExpectations(t)
		store.AssertCalled(t, "TrackAttemptedLogin", ctx, user)
	})

	t.Run("unknown identifier and wrong password are indistinguishable", func(t *testing.T) {
		user := makeTestUser(t, "sup3r-secret!")

		store := &MockUserTracker{}
		store.On("GetByIdentifier", ctx, "nobody@example.com").Return(nil, chat.ErrIdentityNotFound)
		store.On("GetByIdentifier", ctx, "tuxie@example.com").Return(user, nil)
		store.On("TrackAttemptedLogin", ctx, user).Return(nil)

		provider := chat.NewUserProvider(store)

		_, errUnknown := provider.VerifyIdentity(ctx, "nobody@example.com", "whatever")
		_, errWrongPass := provider.VerifyIdentity(ctx, "tuxie@example.com", "wrong-password")

		assert.Equal(t, errUnknown.Error(), errWrongPass.Error())
	})

	t.Run("too many attempts triggers cooldown", func(t *testing.T) {
		user := makeTestUser(t, "sup3r-secret!")
		now := time.Now()
		user.LoginAttempts = chat.MaxLoginAttempts + 1
		user.LoginAttemptAt = &now

		store := &MockUserTracker{}
		store.On("GetByIdentifier", ctx, "tuxie@example.com").Return(user, nil)

		provider := chat.NewUserProvider(store)

		identity, err := provider.VerifyIdentity(ctx, "tuxie@example.com", "sup3r-secret!")

		assert.Nil(t, identity)
		assert.ErrorIs(t, err, chat.ErrTooManyLoginAttempts)

		store.AssertExpectations(t)
	})

	t.Run("cooldown expires after the threshold period", func(t *testing.T) {
		user := makeTestUser(t, "sup3r-secret!")
		stale := time.Now().Add(-25 * time.Hour)
		user.LoginAttempts = chat.MaxLoginAttempts + 1
		user.LoginAttemptAt = &stale

		store := &MockUserTracker{}
		store.On("GetByIdentifier", ctx, "tuxie@example.com").Return(user, nil)
		store.On("TrackSucccessfulLogin", ctx, user).Return(nil)

		provider := chat.NewUserProvider(store)

		identity, err := provider.VerifyIdentity(ctx, "tuxie@example.com", "sup3r-secret!")

		assert.NoError(t, err)
		assert.NotNil(t, identity)

		store.AssertExpectations(t)
	})
}

func TestUserProvider_FindIdentityByIdentifier(t *testing.T) {
	ctx := context.Background()

	t.Run("finds existing identity", func(t *testing.T) {
		user := makeTestUser(t, "sup3r-secret!")

		store := &MockUserTracker{}
		store.On("GetByIdentifier", ctx, "tuxie@example.com").Return(user, nil)

		provider := chat.NewUserProvider(store)

		identity, err := provider.FindIdentityByIdentifier(ctx, "tuxie@example.com")

		assert.NoError(t, err)
		assert.Equal(t, user.Email, identity.Email())

		store.AssertExpectations(t)
	})

	t.Run("propagates lookup errors", func(t *testing.T) {
		store := &MockUserTracker{}
		store.On("GetByIdentifier", ctx, "nobody@example.com").Return(nil, chat.ErrIdentityNotFound)

		provider := chat.NewUserProvider(store)

		identity, err := provider.FindIdentityByIdentifier(ctx, "nobody@example.com")

		assert.Nil(t, identity)
		assert.ErrorIs(t, err, chat.ErrIdentityNotFound)

		store.AssertExpectations(t)
	})
}
