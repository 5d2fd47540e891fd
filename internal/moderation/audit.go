package moderation

import (
	"context"
	"time"

	"chatroom/internal/models"
	"chatroom/internal/observability"
)

// AuditSink persists moderation log entries.
type AuditSink interface {
	Append(ctx context.Context, entry *models.ModerationLogEntry) error
}

// AuditLog appends moderation log entries. A failed append is logged and
// counted; callers treat the returned error as informational only.
type AuditLog struct {
	sink AuditSink
	now  func() time.Time
	log  *observability.ModerationLogger
}

// NewAuditLog creates an AuditLog writing to sink.
func NewAuditLog(sink AuditSink, now func() time.Time) *AuditLog {
	if now == nil {
		now = time.Now
	}
	return &AuditLog{
		sink: sink,
		now:  now,
		log:  observability.NewModerationLogger("audit"),
	}
}

// Record appends one entry. actorID and targetID may be empty for automated
// enforcement; messageID is set when the entry concerns a single message.
func (a *AuditLog) Record(ctx context.Context, action models.ModerationAction, actorID, targetID, messageID string, meta models.LogMetadata) error {
	entry := &models.ModerationLogEntry{
		Action:    action,
		TargetID:  optional(targetID),
		ActorID:   optional(actorID),
		MessageID: optional(messageID),
		Metadata:  meta,
		CreatedAt: a.now().UTC(),
	}
	if err := a.sink.Append(ctx, entry); err != nil {
		observability.AuditWriteFailures.Inc()
		a.log.LogError(ctx, "audit_append", err, map[string]any{
			"action":     string(action),
			"target_id":  targetID,
			"message_id": messageID,
		})
		return err
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
