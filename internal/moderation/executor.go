package moderation

import (
	"context"
	"strings"
	"time"

	"chatroom/internal/identity"
	"chatroom/internal/models"
	"chatroom/internal/observability"
)

// DefaultBatchSize is the largest number of messages removed in one write.
const DefaultBatchSize = 500

// ProfileStore is the profile persistence the executor needs.
type ProfileStore interface {
	ProfileReader
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
	Delete(ctx context.Context, id string) error
}

// MessageStore is the message persistence used by moderation.
type MessageStore interface {
	DeleteBatchByAuthor(ctx context.Context, authorID string, limit int) (int, error)
	SetHidden(ctx context.Context, id string, hidden bool) (bool, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ToggleBanResult is returned by ToggleBan.
type ToggleBanResult struct {
	Banned bool `json:"banned"`
}

// TempBanResult is returned by TempBan.
type TempBanResult struct {
	Until time.Time `json:"until"`
}

// ShadowBanResult is returned by ShadowBan.
type ShadowBanResult struct {
	ShadowBanned bool `json:"shadowBanned"`
}

// MuteResult is returned by Mute. MutedUntil is nil after an unmute.
type MuteResult struct {
	MutedUntil *time.Time `json:"mutedUntil"`
}

// ForceRenameResult is returned by ForceRename.
type ForceRenameResult struct {
	ForceRename bool `json:"forceRename"`
}

// RevokeTokensResult is returned by RevokeTokens.
type RevokeTokensResult struct {
	OK bool `json:"ok"`
}

// BulkDeleteResult is returned by BulkDeleteMessages.
type BulkDeleteResult struct {
	DeletedCount int `json:"deletedCount"`
}

// DeleteAccountResult is returned by DeleteAccount. Warnings lists sub-steps
// that failed without aborting the deletion.
type DeleteAccountResult struct {
	DeletedMessages int      `json:"deletedMessages"`
	Warnings        []string `json:"warnings,omitempty"`
}

// ExecutorConfig holds the executor's collaborators.
type ExecutorConfig struct {
	Profiles    ProfileStore
	Messages    MessageStore
	Accounts    identity.AccountManager
	Audit       *AuditLog
	Broadcaster Broadcaster
	BatchSize   int
	Now         func() time.Time
}

// Executor performs privileged moderation actions. Every action validates
// input, resolves the caller's role, consults the gate and, for actions on a
// user, the target's immunity before issuing a single profile write and one
// audit record.
type Executor struct {
	resolver    *RoleResolver
	profiles    ProfileStore
	messages    MessageStore
	accounts    identity.AccountManager
	audit       *AuditLog
	broadcaster Broadcaster
	batchSize   int
	now         func() time.Time
	log         *observability.ModerationLogger
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.BatchSize <= 0 || cfg.BatchSize > DefaultBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = NopBroadcaster()
	}
	return &Executor{
		resolver:    NewRoleResolver(cfg.Profiles),
		profiles:    cfg.Profiles,
		messages:    cfg.Messages,
		accounts:    cfg.Accounts,
		audit:       cfg.Audit,
		broadcaster: cfg.Broadcaster,
		batchSize:   cfg.BatchSize,
		now:         cfg.Now,
		log:         observability.NewModerationLogger("executor"),
	}
}

// Resolver exposes the executor's role resolver.
func (e *Executor) Resolver() *RoleResolver {
	return e.resolver
}

type actionSpec struct {
	action   models.ModerationAction
	required models.Role
	immunity bool
	noSelf   bool
	callerID string
	targetID string

	// validate checks the action's own arguments before any lookup.
	validate func() error
}

// run validates and authorizes spec, then runs fn inside a span.
func (e *Executor) run(ctx context.Context, spec actionSpec, fn func(ctx context.Context) error) error {
	ctx, span := observability.StartModerationSpan(ctx, string(spec.action), spec.callerID, spec.targetID)
	defer span.End()

	err := e.authorize(ctx, spec)
	if err == nil {
		err = fn(ctx)
	}

	outcome := "ok"
	switch {
	case err == nil:
	case models.IsCode(err, models.CodeAuthorizationDenied), models.IsCode(err, models.CodeAuthenticationMissing):
		outcome = "denied"
		e.log.LogDenied(ctx, string(spec.action), spec.callerID, spec.targetID, err)
	case models.IsCode(err, models.CodeValidation):
		outcome = "invalid"
	default:
		outcome = "error"
		observability.FailSpan(span, err)
	}
	observability.ModerationActionsTotal.WithLabelValues(string(spec.action), outcome).Inc()
	return err
}

func (e *Executor) authorize(ctx context.Context, spec actionSpec) error {
	if strings.TrimSpace(spec.targetID) == "" {
		return models.NewValidationError("targetUid is required")
	}
	if spec.validate != nil {
		if err := spec.validate(); err != nil {
			return err
		}
	}
	if spec.callerID == "" {
		return models.NewAuthenticationMissingError("Authorization required")
	}

	callerRole, err := e.resolver.Resolve(ctx, spec.callerID)
	if err != nil {
		return err
	}
	if err := Authorize(callerRole, spec.required); err != nil {
		return err
	}
	if spec.noSelf && spec.callerID == spec.targetID {
		return models.NewValidationError("You cannot apply this action to yourself")
	}
	if !spec.immunity {
		return nil
	}

	targetRole, err := e.resolver.Resolve(ctx, spec.targetID)
	if err != nil {
		return err
	}
	return CheckTargetImmunity(callerRole, targetRole)
}

// record writes the audit entry for a completed action. Failures are already
// reported by the AuditLog and do not affect the action.
func (e *Executor) record(ctx context.Context, spec actionSpec, meta models.LogMetadata) {
	_ = e.audit.Record(ctx, spec.action, spec.callerID, spec.targetID, "", meta)
	e.log.LogAction(ctx, string(spec.action), spec.callerID, spec.targetID, meta)
}

// ToggleBan sets or clears a permanent ban. Either way any temp-ban expiry
// is cleared.
func (e *Executor) ToggleBan(ctx context.Context, callerID, targetID string, banned bool) (*ToggleBanResult, error) {
	spec := actionSpec{
		action:   models.ActionToggleBan,
		required: models.RoleAdmin,
		immunity: true,
		noSelf:   banned,
		callerID: callerID,
		targetID: targetID,
	}
	err := e.run(ctx, spec, func(ctx context.Context) error {
		banType := models.BanTypeNone
		if banned {
			banType = models.BanTypePermanent
		}
		if err := e.profiles.UpdateFields(ctx, targetID, map[string]any{
			"banned":       banned,
			"banned_until": nil,
			"ban_type":     banType,
		}); err != nil {
			return err
		}
		e.record(ctx, spec, models.LogMetadata{"banned": banned})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ToggleBanResult{Banned: banned}, nil
}

// TempBan bans the target until now+duration. The expiry is stored as an
// absolute instant.
func (e *Executor) TempBan(ctx context.Context, callerID, targetID string, durationMs int64) (*TempBanResult, error) {
	spec := actionSpec{
		action:   models.ActionTempBan,
		required: models.RoleAdmin,
		immunity: true,
		noSelf:   true,
		callerID: callerID,
		targetID: targetID,
		validate: func() error {
			if durationMs <= 0 {
				return models.NewValidationError("durationMs must be a positive number of milliseconds")
			}
			return nil
		},
	}
	var until time.Time
	err := e.run(ctx, spec, func(ctx context.Context) error {
		until = e.now().UTC().Add(time.Duration(durationMs) * time.Millisecond)
		if err := e.profiles.UpdateFields(ctx, targetID, map[string]any{
			"banned":       true,
			"banned_until": until,
			"ban_type":     models.BanTypeTemp,
		}); err != nil {
			return err
		}
		e.record(ctx, spec, models.LogMetadata{"durationMs": durationMs, "until": until})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &TempBanResult{Until: until}, nil
}

// ShadowBan sets or clears the shadow-ban flag.
func (e *Executor) ShadowBan(ctx context.Context, callerID, targetID string, shadowBanned bool) (*ShadowBanResult, error) {
	spec := actionSpec{
		action:   models.ActionShadowBan,
		required: models.RoleAdmin,
		immunity: true,
		noSelf:   shadowBanned,
		callerID: callerID,
		targetID: targetID,
	}
	err := e.run(ctx, spec, func(ctx context.Context) error {
		if err := e.profiles.UpdateFields(ctx, targetID, map[string]any{
			"shadow_banned": shadowBanned,
		}); err != nil {
			return err
		}
		e.record(ctx, spec, models.LogMetadata{"shadowBanned": shadowBanned})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ShadowBanResult{ShadowBanned: shadowBanned}, nil
}

// Mute blocks the target from posting until now+duration. A zero duration
// lifts the mute.
func (e *Executor) Mute(ctx context.Context, callerID, targetID string, durationMs int64) (*MuteResult, error) {
	spec := actionSpec{
		action:   models.ActionMute,
		required: models.RoleModerator,
		immunity: true,
		noSelf:   durationMs > 0,
		callerID: callerID,
		targetID: targetID,
		validate: func() error {
			if durationMs < 0 {
				return models.NewValidationError("durationMs must not be negative")
			}
			return nil
		},
	}
	var until *time.Time
	err := e.run(ctx, spec, func(ctx context.Context) error {
		if durationMs > 0 {
			t := e.now().UTC().Add(time.Duration(durationMs) * time.Millisecond)
			until = &t
		}
		if err := e.profiles.UpdateFields(ctx, targetID, map[string]any{
			"muted_until": until,
		}); err != nil {
			return err
		}
		e.record(ctx, spec, models.LogMetadata{"durationMs": durationMs, "until": until})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &MuteResult{MutedUntil: until}, nil
}

// ForceRename requires the target to choose a new display name before posting
// again.
func (e *Executor) ForceRename(ctx context.Context, callerID, targetID string) (*ForceRenameResult, error) {
	spec := actionSpec{
		action:   models.ActionForceRename,
		required: models.RoleModerator,
		immunity: true,
		noSelf:   true,
		callerID: callerID,
		targetID: targetID,
	}
	err := e.run(ctx, spec, func(ctx context.Context) error {
		if err := e.profiles.UpdateFields(ctx, targetID, map[string]any{
			"force_rename": true,
		}); err != nil {
			return err
		}
		e.record(ctx, spec, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ForceRenameResult{ForceRename: true}, nil
}

// RevokeTokens invalidates every outstanding session of the target.
func (e *Executor) RevokeTokens(ctx context.Context, callerID, targetID string) (*RevokeTokensResult, error) {
	spec := actionSpec{
		action:   models.ActionRevokeTokens,
		required: models.RoleGrandWizard,
		callerID: callerID,
		targetID: targetID,
	}
	err := e.run(ctx, spec, func(ctx context.Context) error {
		if e.accounts == nil {
			return models.NewBackendUnavailableError(errNoAccountManager)
		}
		if err := e.accounts.RevokeSessions(ctx, targetID); err != nil {
			return err
		}
		e.record(ctx, spec, nil)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &RevokeTokensResult{OK: true}, nil
}

// BulkDeleteMessages removes every message by the target in bounded batches.
// Target immunity does not apply: an admin may purge a GrandWizard's content.
func (e *Executor) BulkDeleteMessages(ctx context.Context, callerID, targetID string) (*BulkDeleteResult, error) {
	spec := actionSpec{
		action:   models.ActionDeleteMessages,
		required: models.RoleAdmin,
		callerID: callerID,
		targetID: targetID,
	}
	var deleted int
	err := e.run(ctx, spec, func(ctx context.Context) error {
		n, err := e.purge(ctx, targetID)
		deleted = n
		if err != nil {
			return err
		}
		e.record(ctx, spec, models.LogMetadata{"deletedCount": n})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &BulkDeleteResult{DeletedCount: deleted}, nil
}

// DeleteAccount removes the target's identity, profile and messages. Each
// step is attempted even if an earlier one failed.
func (e *Executor) DeleteAccount(ctx context.Context, callerID, targetID string) (*DeleteAccountResult, error) {
	spec := actionSpec{
		action:   models.ActionDeleteAccount,
		required: models.RoleGrandWizard,
		noSelf:   true,
		callerID: callerID,
		targetID: targetID,
	}
	result := &DeleteAccountResult{}
	err := e.run(ctx, spec, func(ctx context.Context) error {
		warn := func(step string, err error) {
			e.log.LogError(ctx, "delete_account."+step, err, map[string]any{"target_id": targetID})
			result.Warnings = append(result.Warnings, step+": "+err.Error())
		}

		if e.accounts == nil {
			warn("identity", errNoAccountManager)
		} else if err := e.accounts.DeleteAccount(ctx, targetID); err != nil {
			warn("identity", err)
		}

		if err := e.profiles.Delete(ctx, targetID); err != nil && !models.IsCode(err, models.CodeNotFound) {
			warn("profile", err)
		}

		n, err := e.purge(ctx, targetID)
		result.DeletedMessages = n
		if err != nil {
			warn("messages", err)
		}

		meta := models.LogMetadata{"removedMessages": n}
		if len(result.Warnings) > 0 {
			meta["warnings"] = result.Warnings
		}
		e.record(ctx, spec, meta)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// purge deletes authorID's messages batch by batch until a batch comes back
// empty. A failure leaves the remainder for a later retry.
func (e *Executor) purge(ctx context.Context, authorID string) (int, error) {
	total := 0
	defer func() {
		if total > 0 {
			observability.MessagesDeleted.WithLabelValues("bulk").Add(float64(total))
			e.broadcaster.AuthorPurged(ctx, authorID)
		}
	}()
	for {
		n, err := e.messages.DeleteBatchByAuthor(ctx, authorID, e.batchSize)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		total += n
	}
}
