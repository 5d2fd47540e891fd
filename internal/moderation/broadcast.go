package moderation

import (
	"context"

	"chatroom/internal/models"
)

// Broadcaster fans moderation outcomes out to connected clients.
type Broadcaster interface {
	// MessagePublished delivers m. Hidden messages reach only their author.
	MessagePublished(ctx context.Context, m *models.Message)
	MessageRemoved(ctx context.Context, messageID string)
	AuthorPurged(ctx context.Context, authorID string)
}

type nopBroadcaster struct{}

func (nopBroadcaster) MessagePublished(context.Context, *models.Message) {}
func (nopBroadcaster) MessageRemoved(context.Context, string)            {}
func (nopBroadcaster) AuthorPurged(context.Context, string)              {}

// NopBroadcaster discards every event.
func NopBroadcaster() Broadcaster { return nopBroadcaster{} }
