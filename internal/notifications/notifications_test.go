package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"chatroom/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, h *Hub, userID string) *Client {
	t.Helper()
	c, err := h.Register(userID, nil)
	require.NoError(t, err)
	return c
}

func receive(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw := <-c.Send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(time.Second):
		t.Fatalf("no message for %s", c.UserID)
		return Envelope{}
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected message for %s: %s", c.UserID, raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_RegisterAndLimits(t *testing.T) {
	h := NewHub()
	clients := make([]*Client, 0, maxConnsPerUser)
	for i := 0; i < maxConnsPerUser; i++ {
		clients = append(clients, register(t, h, "alice"))
	}
	_, err := h.Register("alice", nil)
	assert.ErrorIs(t, err, ErrConnectionLimit)
	assert.Equal(t, maxConnsPerUser, h.ConnectionCount())

	h.UnregisterClient(clients[0])
	h.UnregisterClient(clients[0])
	assert.Equal(t, maxConnsPerUser-1, h.ConnectionCount())

	_, ok := <-clients[0].Send
	assert.False(t, ok, "send channel closed on unregister")

	require.NoError(t, h.Shutdown(context.Background()))
	assert.Zero(t, h.ConnectionCount())
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	h := NewHub()
	c := register(t, h, "alice")
	for i := 0; i < sendBuffer; i++ {
		c.TrySend([]byte("x"))
	}
	c.TrySend([]byte("overflow"))
	assert.Len(t, c.Send, sendBuffer)

	h.UnregisterClient(c)
	assert.NotPanics(t, func() { c.TrySend([]byte("late")) })
}

func TestClient_DropNoticeIsAnEnvelope(t *testing.T) {
	var env Envelope
	require.NoError(t, json.Unmarshal(dropNotice, &env))
	assert.Equal(t, EventMessagesDropped, env.Type)
	assert.Equal(t, map[string]any{"reason": "buffer_full"}, env.Payload)
}

func TestNotifier_LocalDelivery(t *testing.T) {
	h := NewHub()
	author := register(t, h, "shade")
	other := register(t, h, "alice")
	n := NewNotifier(nil, h)
	ctx := context.Background()

	n.MessagePublished(ctx, &models.Message{ID: "m1", AuthorID: "shade", Hidden: true})
	env := receive(t, author)
	assert.Equal(t, EventMessage, env.Type)
	assertNothing(t, other)

	n.MessagePublished(ctx, &models.Message{ID: "m2", AuthorID: "alice"})
	assert.Equal(t, EventMessage, receive(t, author).Type)
	assert.Equal(t, EventMessage, receive(t, other).Type)

	n.MessageRemoved(ctx, "m2")
	env = receive(t, other)
	assert.Equal(t, EventMessageRemoved, env.Type)
	assert.Equal(t, map[string]any{"id": "m2"}, env.Payload)
	assert.Equal(t, EventMessageRemoved, receive(t, author).Type)

	n.AuthorPurged(ctx, "alice")
	assert.Equal(t, EventAuthorPurged, receive(t, author).Type)
}

func TestNotifier_RedisFanOut(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewHub()
	author := register(t, h, "shade")
	other := register(t, h, "alice")
	require.NoError(t, h.StartWiring(ctx, NewNotifier(rdb, nil)))

	// A publisher in another process has no local hub.
	remote := NewNotifier(rdb, nil)
	remote.MessagePublished(ctx, &models.Message{ID: "m1", AuthorID: "shade", Hidden: true})

	env := receive(t, author)
	assert.Equal(t, EventMessage, env.Type)
	assertNothing(t, other)

	remote.MessageRemoved(ctx, "m1")
	assert.Equal(t, EventMessageRemoved, receive(t, author).Type)
	assert.Equal(t, EventMessageRemoved, receive(t, other).Type)
}

func TestUserChannel(t *testing.T) {
	assert.Equal(t, "chat:user:abc", UserChannel("abc"))
}
