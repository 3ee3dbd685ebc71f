package chat_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	chat "github.com/goliatone/go-chat"
	"github.com/goliatone/go-chat/broker/memory"
	"github.com/stretchr/testify/require"
)

func drainEnvelope(t *testing.T, sub chat.Subscription) *chat.Envelope {
	t.Helper()
	select {
	case payload, ok := <-sub.C():
		require.True(t, ok, "subscription channel closed")
		env := &chat.Envelope{}
		require.NoError(t, json.Unmarshal(payload, env))
		return env
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for relay event")
	}
	return nil
}

// Exercises the full path: credentials become a token, the token names the
// principal at join time, and chat events fan out to every peer with the
// server-stamped sender.
func TestLoginJoinChatLifecycleIntegration(t *testing.T) {
	ctx := context.Background()

	user := makeTestUser(t, "sup3r-secret!")

	store := &MockUserTracker{}
	store.On("GetByIdentifier", ctx, "tuxie@example.com").Return(user, nil)
	store.On("TrackSucccessfulLogin", ctx, user).Return(nil)

	provider := chat.NewUserProvider(store)

	cfg := testConfig{
		signingKey: "integration-key",
		issuer:     "chatd",
		audience:   []string{"chat"},
	}
	auther := chat.NewAuthenticator(provider, cfg)

	token, err := auther.Login(ctx, "tuxie@example.com", "sup3r-secret!")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	broker := memory.New()
	messages := &fakeMessages{}
	relay := chat.NewRelay(broker, messages,
		chat.WithRelayTokenValidator(auther.TokenService()))

	// a second participant watching the topic
	peer, err := relay.Subscribe(ctx)
	require.NoError(t, err)

	sess := chat.NewConnSession("conn-integration")

	// premature chat is rejected and nothing reaches the peer
	err = relay.HandleEvent(ctx, sess, []byte(`{"type":"CHAT","content":"too early"}`))
	require.ErrorIs(t, err, chat.ErrUnboundConnection)

	// join with the issued token; the declared sender is overridden by the claim
	join := `{"type":"JOIN","sender":"impostor@example.com","token":"` + token + `"}`
	require.NoError(t, relay.HandleEvent(ctx, sess, []byte(join)))

	env := drainEnvelope(t, peer)
	require.Equal(t, chat.MessageTypeJoin, env.Type)
	require.Equal(t, "tuxie@example.com", env.Sender)

	// chat now flows with the bound principal and is persisted
	require.NoError(t, relay.HandleEvent(ctx, sess, []byte(`{"type":"CHAT","content":"hello everyone"}`)))

	env = drainEnvelope(t, peer)
	require.Equal(t, chat.MessageTypeChat, env.Type)
	require.Equal(t, "tuxie@example.com", env.Sender)
	require.Equal(t, "hello everyone", env.Content)
	require.NotNil(t, env.SentAt)

	require.Len(t, messages.saved, 1)
	require.Equal(t, "tuxie@example.com", messages.saved[0].Sender)

	// teardown synthesizes exactly one leave
	require.NoError(t, relay.HandleClose(ctx, sess))

	env = drainEnvelope(t, peer)
	require.Equal(t, chat.MessageTypeLeave, env.Type)
	require.Equal(t, "tuxie@example.com", env.Sender)

	err = relay.HandleClose(ctx, sess)
	require.ErrorIs(t, err, chat.ErrConnectionClosed)

	store.AssertExpectations(t)
}
