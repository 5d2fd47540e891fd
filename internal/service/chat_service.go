// Package service provides the chat write and read paths, profiles and
// reports on top of the moderation core.
package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"chatroom/internal/events"
	"chatroom/internal/models"
	"chatroom/internal/moderation"
	"chatroom/internal/observability"
	"chatroom/internal/repository"
)

// MaxMessageLength is the longest accepted message, in characters.
const MaxMessageLength = 2000

// MaxReportReasonLength bounds a report's free-text reason.
const MaxReportReasonLength = 500

// ChatService provides the message write and read paths.
type ChatService struct {
	profiles    repository.ProfileRepository
	messages    repository.MessageRepository
	reports     repository.ReportRepository
	resolver    *moderation.RoleResolver
	viewerRoles *moderation.RoleResolver
	audit       *moderation.AuditLog
	publisher   events.Publisher
	broadcaster moderation.Broadcaster
	now         func() time.Time
}

// ChatServiceDeps holds ChatService collaborators.
type ChatServiceDeps struct {
	Profiles    repository.ProfileRepository
	Messages    repository.MessageRepository
	Reports     repository.ReportRepository
	Audit       *moderation.AuditLog
	Publisher   events.Publisher
	Broadcaster moderation.Broadcaster
	Now         func() time.Time
}

// SendMessageInput is the input for sending a message.
type SendMessageInput struct {
	AuthorID string
	Text     string
}

// ListMessagesInput is the input for reading the message stream.
type ListMessagesInput struct {
	ViewerID string
	Limit    int
	Before   *time.Time
}

// ReportMessageInput is the input for reporting a message.
type ReportMessageInput struct {
	ReporterID string
	MessageID  string
	Reason     string
}

// NewChatService returns a new ChatService.
func NewChatService(deps ChatServiceDeps) *ChatService {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = moderation.NopBroadcaster()
	}
	return &ChatService{
		profiles:    deps.Profiles,
		messages:    deps.Messages,
		reports:     deps.Reports,
		resolver:    moderation.NewRoleResolver(deps.Profiles),
		viewerRoles: moderation.NewRoleResolver(cachedProfiles{deps.Profiles}),
		audit:       deps.Audit,
		publisher:   deps.Publisher,
		broadcaster: deps.Broadcaster,
		now:         deps.Now,
	}
}

// SendMessage validates and stores a message, then emits the event that runs
// enforcement. Muted authors and authors required to rename are refused
// before anything is written. Bans are not checked here.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if in.AuthorID == "" {
		return nil, models.NewAuthenticationMissingError("Authorization required")
	}
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, models.NewValidationError("Message text is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, models.NewValidationError("Message text must be 2000 characters or fewer")
	}

	author, err := s.profiles.Get(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, models.NewNotFoundError("Profile", in.AuthorID)
	}
	now := s.now().UTC()
	if author.IsMutedAt(now) {
		return nil, models.NewMutedError(*author.MutedUntil)
	}
	if author.ForceRename {
		return nil, models.NewRenameRequiredError()
	}

	msg := &models.Message{
		AuthorID:    author.ID,
		DisplayName: author.DisplayName,
		AvatarURL:   author.AvatarURL,
		Text:        text,
		CreatedAt:   now,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, events.NewMessageCreated(ctx, msg)); err != nil {
			// Unpublished messages are rolled back.
			if _, delErr := s.messages.Delete(ctx, msg.ID); delErr != nil {
				observability.LogAsyncOperationError(ctx, "rollback_unpublished_message", delErr, map[string]any{
					"message_id": msg.ID,
				})
			}
			return nil, models.NewBackendUnavailableError(err)
		}
	}
	return msg, nil
}

// ListMessages returns a chronological page. Hidden messages are included for
// their author and for moderators.
func (s *ChatService) ListMessages(ctx context.Context, in ListMessagesInput) ([]models.Message, error) {
	q := repository.MessageQuery{
		Before:   in.Before,
		Limit:    in.Limit,
		ViewerID: in.ViewerID,
	}
	if in.ViewerID != "" {
		role, err := s.viewerRoles.Resolve(ctx, in.ViewerID)
		if err != nil {
			return nil, err
		}
		q.IncludeHidden = role.AtLeast(models.RoleModerator)
	}
	return s.messages.List(ctx, q)
}

// DeleteMessage removes one message. Authors may delete their own; anyone
// else needs moderator.
func (s *ChatService) DeleteMessage(ctx context.Context, callerID, messageID string) error {
	if callerID == "" {
		return models.NewAuthenticationMissingError("Authorization required")
	}
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	moderated := msg.AuthorID != callerID
	if moderated {
		role, err := s.resolver.Resolve(ctx, callerID)
		if err != nil {
			return err
		}
		if err := moderation.Authorize(role, models.RoleModerator); err != nil {
			return err
		}
	}

	found, err := s.messages.Delete(ctx, messageID)
	if err != nil {
		return err
	}
	if !found {
		return models.NewNotFoundError("Message", messageID)
	}
	if moderated && s.audit != nil {
		_ = s.audit.Record(ctx, models.ActionDeleteMessage, callerID, msg.AuthorID, msg.ID, nil)
	}
	observability.MessagesDeleted.WithLabelValues("single").Inc()
	s.broadcaster.MessageRemoved(ctx, messageID)
	return nil
}

// ReportMessage flags a message for moderator review.
func (s *ChatService) ReportMessage(ctx context.Context, in ReportMessageInput) (*models.Report, error) {
	if in.ReporterID == "" {
		return nil, models.NewAuthenticationMissingError("Authorization required")
	}
	reason := strings.TrimSpace(in.Reason)
	if utf8.RuneCountInString(reason) > MaxReportReasonLength {
		return nil, models.NewValidationError("Report reason must be 500 characters or fewer")
	}

	msg, err := s.messages.GetByID(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}
	if msg.AuthorID == in.ReporterID {
		return nil, models.NewValidationError("You cannot report your own message")
	}

	report := &models.Report{
		MessageID:  msg.ID,
		AuthorID:   msg.AuthorID,
		ReporterID: in.ReporterID,
		Reason:     reason,
		Status:     models.ReportStatusOpen,
	}
	if err := s.reports.Create(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// cachedProfiles reads profiles through the cache. It serves display-only
// lookups such as the viewer's role for listing.
type cachedProfiles struct {
	repo repository.ProfileRepository
}

func (c cachedProfiles) Get(ctx context.Context, id string) (*models.UserProfile, error) {
	return c.repo.GetCached(ctx, id)
}
