// Package events carries message-created notifications from the write path
// to the enforcement trigger over an inline call, a Redis stream or Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatroom/internal/models"
	"chatroom/internal/moderation"
	"chatroom/internal/observability"
)

// TypeMessageCreated identifies a MessageCreated event on the wire.
const TypeMessageCreated = "message.created"

// MessageCreated is emitted once a message has been stored.
type MessageCreated struct {
	Type          string         `json:"type"`
	Message       models.Message `json:"message"`
	OccurredAt    time.Time      `json:"occurred_at"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// NewMessageCreated builds the event for m.
func NewMessageCreated(ctx context.Context, m *models.Message) *MessageCreated {
	return &MessageCreated{
		Type:          TypeMessageCreated,
		Message:       *m,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: observability.ExtractCorrelationID(ctx),
	}
}

// Handler processes one event. A non-nil error asks for redelivery.
type Handler func(ctx context.Context, evt *MessageCreated) error

// Publisher emits message-created events.
type Publisher interface {
	Publish(ctx context.Context, evt *MessageCreated) error
	Close() error
}

// Consumer delivers events to a handler until ctx is cancelled.
type Consumer interface {
	Run(ctx context.Context, h Handler) error
	Close() error
}

// EnforcementHandler adapts an Enforcer to a Handler.
func EnforcementHandler(e *moderation.Enforcer) Handler {
	return func(ctx context.Context, evt *MessageCreated) error {
		_, err := e.HandleMessageCreated(ctx, &evt.Message)
		return err
	}
}

func encode(evt *MessageCreated) ([]byte, error) {
	if evt.Type == "" {
		evt.Type = TypeMessageCreated
	}
	return json.Marshal(evt)
}

func decode(payload []byte) (*MessageCreated, error) {
	var evt MessageCreated
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if evt.Type != TypeMessageCreated {
		return nil, fmt.Errorf("unexpected event type %q", evt.Type)
	}
	if evt.Message.ID == "" || evt.Message.AuthorID == "" {
		return nil, fmt.Errorf("event is missing message id or author")
	}
	return &evt, nil
}

// deliver runs h for evt inside a consumer span and records the result.
func deliver(ctx context.Context, backend string, h Handler, evt *MessageCreated) error {
	if evt.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, evt.CorrelationID)
	}
	ctx, span := observability.TraceEventDelivery(ctx, backend, evt.Type)
	defer span.End()

	if err := h(ctx, evt); err != nil {
		observability.FailSpan(span, err)
		observability.EventDeliveries.WithLabelValues(backend, "failed").Inc()
		observability.LogAsyncOperationError(ctx, "event_delivery", err, map[string]any{
			"backend":    backend,
			"message_id": evt.Message.ID,
		})
		return err
	}
	observability.EventDeliveries.WithLabelValues(backend, "ok").Inc()
	return nil
}
