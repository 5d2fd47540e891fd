package moderation

import (
	"context"
	"time"

	"chatroom/internal/models"
	"chatroom/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// Outcome is what enforcement did with a newly created message.
type Outcome string

const (
	OutcomeKept    Outcome = "kept"
	OutcomeRemoved Outcome = "removed"
	OutcomeHidden  Outcome = "hidden"
)

// Enforcer reacts to message creation by removing messages from banned
// authors and hiding messages from shadow-banned authors.
type Enforcer struct {
	profiles    ProfileReader
	messages    MessageStore
	audit       *AuditLog
	broadcaster Broadcaster
	now         func() time.Time
	log         *observability.ModerationLogger
}

// NewEnforcer creates an Enforcer.
func NewEnforcer(profiles ProfileReader, messages MessageStore, audit *AuditLog, b Broadcaster, now func() time.Time) *Enforcer {
	if b == nil {
		b = NopBroadcaster()
	}
	if now == nil {
		now = time.Now
	}
	return &Enforcer{
		profiles:    profiles,
		messages:    messages,
		audit:       audit,
		broadcaster: b,
		now:         now,
		log:         observability.NewModerationLogger("enforcer"),
	}
}

// HandleMessageCreated applies the author's moderation state to m. It is safe
// to call more than once for the same message: a second delivery finds the
// message already gone or already hidden and writes no further audit entry.
//
// An error means the author's state could not be read or the write failed;
// the event should be redelivered.
func (e *Enforcer) HandleMessageCreated(ctx context.Context, m *models.Message) (Outcome, error) {
	ctx, span := observability.StartEnforcementSpan(ctx, m.ID, m.AuthorID)
	defer span.End()

	outcome, err := e.enforce(ctx, m)
	if err != nil {
		observability.FailSpan(span, err)
		observability.EnforcementOutcomes.WithLabelValues("error").Inc()
		e.log.LogError(ctx, "enforce", err, map[string]any{
			"message_id": m.ID,
			"author_id":  m.AuthorID,
		})
		return outcome, err
	}
	span.SetAttributes(attribute.String("moderation.outcome", string(outcome)))
	observability.EnforcementOutcomes.WithLabelValues(string(outcome)).Inc()
	return outcome, nil
}

func (e *Enforcer) enforce(ctx context.Context, m *models.Message) (Outcome, error) {
	author, err := e.profiles.Get(ctx, m.AuthorID)
	if err != nil {
		return OutcomeKept, err
	}

	switch {
	case author.IsBannedAt(e.now()):
		found, err := e.messages.Delete(ctx, m.ID)
		if err != nil {
			return OutcomeKept, err
		}
		if found {
			observability.MessagesDeleted.WithLabelValues("enforcement").Inc()
			_ = e.audit.Record(ctx, models.ActionMessageRemovedBannedAuthor, "", m.AuthorID, m.ID, nil)
		}
		e.broadcaster.MessageRemoved(ctx, m.ID)
		return OutcomeRemoved, nil

	case author != nil && author.ShadowBanned:
		changed, err := e.messages.SetHidden(ctx, m.ID, true)
		if err != nil {
			return OutcomeKept, err
		}
		if changed {
			_ = e.audit.Record(ctx, models.ActionMessageHiddenShadowBanned, "", m.AuthorID, m.ID, nil)
		} else if gone, err := e.gone(ctx, m.ID); err != nil || gone {
			return OutcomeHidden, err
		}
		hidden := *m
		hidden.Hidden = true
		e.broadcaster.MessagePublished(ctx, &hidden)
		return OutcomeHidden, nil

	case author == nil:
		if gone, err := e.gone(ctx, m.ID); err != nil || gone {
			return OutcomeKept, err
		}
		e.broadcaster.MessagePublished(ctx, m)
		return OutcomeKept, nil

	default:
		// Hidden is only ever derived from the author's current shadow-ban.
		changed, err := e.messages.SetHidden(ctx, m.ID, false)
		if err != nil {
			return OutcomeKept, err
		}
		if !changed {
			if gone, err := e.gone(ctx, m.ID); err != nil || gone {
				return OutcomeKept, err
			}
		}
		visible := *m
		visible.Hidden = false
		e.broadcaster.MessagePublished(ctx, &visible)
		return OutcomeKept, nil
	}
}

// gone reports whether the message was deleted before enforcement ran, in
// which case nothing is broadcast for it.
func (e *Enforcer) gone(ctx context.Context, id string) (bool, error) {
	ok, err := e.messages.Exists(ctx, id)
	return !ok, err
}
