package events

import "context"

// InlineBus delivers each event to its handler on the publishing goroutine.
// There is no redelivery, so a failed delivery fails the publish and the
// publisher is expected to undo the write that produced the event.
type InlineBus struct {
	handler Handler
}

// NewInlineBus creates an InlineBus delivering to h.
func NewInlineBus(h Handler) *InlineBus {
	return &InlineBus{handler: h}
}

// Publish hands evt to the handler.
func (b *InlineBus) Publish(ctx context.Context, evt *MessageCreated) error {
	if b.handler == nil {
		return nil
	}
	if evt.Type == "" {
		evt.Type = TypeMessageCreated
	}
	return deliver(ctx, "inline", b.handler, evt)
}

// Close implements Publisher.
func (b *InlineBus) Close() error { return nil }
