// Package notifications fans chat events out to websocket clients, across
// processes through Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"

	"chatroom/internal/models"
	"chatroom/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Channel names.
const (
	RoomChannel       = "chat:room"
	userChannelPrefix = "chat:user:"
)

// Event types sent to clients.
const (
	EventMessage        = "message"
	EventMessageRemoved = "message_removed"
	EventAuthorPurged   = "author_purged"
)

// Envelope is the JSON frame written to websocket clients.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// Notifier publishes chat events. With a Redis client events go through
// pub/sub so every API process can deliver them; without one they go
// straight to the local hub.
type Notifier struct {
	rdb   *redis.Client
	local *Hub
}

// NewNotifier creates a Notifier. Either argument may be nil.
func NewNotifier(rdb *redis.Client, local *Hub) *Notifier {
	return &Notifier{rdb: rdb, local: local}
}

// MessagePublished implements moderation.Broadcaster. Hidden messages go to
// their author only.
func (n *Notifier) MessagePublished(ctx context.Context, m *models.Message) {
	channel := RoomChannel
	if m.Hidden {
		channel = UserChannel(m.AuthorID)
	}
	n.publish(ctx, channel, Envelope{Type: EventMessage, Payload: m})
}

// MessageRemoved implements moderation.Broadcaster.
func (n *Notifier) MessageRemoved(ctx context.Context, messageID string) {
	n.publish(ctx, RoomChannel, Envelope{
		Type:    EventMessageRemoved,
		Payload: map[string]string{"id": messageID},
	})
}

// AuthorPurged implements moderation.Broadcaster.
func (n *Notifier) AuthorPurged(ctx context.Context, authorID string) {
	n.publish(ctx, RoomChannel, Envelope{
		Type:    EventAuthorPurged,
		Payload: map[string]string{"author_id": authorID},
	})
}

func (n *Notifier) publish(ctx context.Context, channel string, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		observability.LogAsyncOperationError(ctx, "notify_marshal", err, map[string]any{"type": env.Type})
		return
	}

	if n.rdb == nil {
		if n.local != nil {
			n.local.deliver(channel, string(payload))
		}
		return
	}
	if err := n.rdb.Publish(ctx, channel, string(payload)).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("publish").Inc()
		observability.LogAsyncOperationError(ctx, "notify_publish", err, map[string]any{
			"channel": channel,
			"type":    env.Type,
		})
	}
}

// StartSubscriber subscribes to the room and user channels and calls
// onMessage for each payload until ctx is cancelled.
func (n *Notifier) StartSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, RoomChannel, userChannelPrefix+"*")
	// Wait for the subscription so publishes after return are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Error("panic in notification subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}
