package moderation

import (
	"testing"
	"time"

	"chatroom/internal/models"
	"chatroom/internal/repository"
	"chatroom/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforcer_BannedAuthorMessageRemoved(t *testing.T) {
	h := newHarness(t)
	h.profile("bob", models.RoleUser, testutil.Banned())
	msg := testutil.CreateMessages(t, h.db, "bob", 1)[0]

	outcome, err := h.enforcer.HandleMessageCreated(h.ctx, &msg)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, outcome)

	_, err = h.messages.GetByID(h.ctx, msg.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	// Redelivery leaves a single audit entry.
	outcome, err = h.enforcer.HandleMessageCreated(h.ctx, &msg)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, outcome)

	entries := h.logs(models.ActionMessageRemovedBannedAuthor)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].ActorID)
	require.NotNil(t, entries[0].TargetID)
	assert.Equal(t, "bob", *entries[0].TargetID)
	require.NotNil(t, entries[0].MessageID)
	assert.Equal(t, msg.ID, *entries[0].MessageID)

	assert.Contains(t, h.broadcast.removed, msg.ID)
	assert.Empty(t, h.broadcast.published)
}

func TestEnforcer_ShadowBannedAuthorMessageHidden(t *testing.T) {
	h := newHarness(t)
	h.profile("shade", models.RoleUser, testutil.ShadowBanned())
	msg := testutil.CreateMessages(t, h.db, "shade", 1)[0]

	outcome, err := h.enforcer.HandleMessageCreated(h.ctx, &msg)
	require.NoError(t, err)
	assert.Equal(t, OutcomeHidden, outcome)

	_, err = h.enforcer.HandleMessageCreated(h.ctx, &msg)
	require.NoError(t, err)

	stored, err := h.messages.GetByID(h.ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.Hidden)

	assert.Len(t, h.logs(models.ActionMessageHiddenShadowBanned), 1)

	others, err := h.messages.List(h.ctx, repository.MessageQuery{ViewerID: "someone"})
	require.NoError(t, err)
	assert.Empty(t, others)

	own, err := h.messages.List(h.ctx, repository.MessageQuery{ViewerID: "shade"})
	require.NoError(t, err)
	assert.Len(t, own, 1)

	require.NotEmpty(t, h.broadcast.published)
	assert.True(t, h.broadcast.published[0].Hidden)
}

func TestEnforcer_StaleHiddenFlagCleared(t *testing.T) {
	h := newHarness(t)
	h.profile("carol", models.RoleUser)
	msg := testutil.CreateMessages(t, h.db, "carol", 1)[0]
	require.NoError(t, h.db.Model(&models.Message{}).Where("id = ?", msg.ID).Update("hidden", true).Error)
	msg.Hidden = true

	outcome, err := h.enforcer.HandleMessageCreated(h.ctx, &msg)
	require.NoError(t, err)
	assert.Equal(t, OutcomeKept, outcome)

	stored, err := h.messages.GetByID(h.ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, stored.Hidden)
	assert.Empty(t, h.logs(models.ActionMessageHiddenShadowBanned))

	require.Len(t, h.broadcast.published, 1)
	assert.False(t, h.broadcast.published[0].Hidden)
}

func TestEnforcer_CleanAuthorKept(t *testing.T) {
	h := newHarness(t)
	h.profile("alice", models.RoleUser)
	msg := testutil.CreateMessages(t, h.db, "alice", 1)[0]

	outcome, err := h.enforcer.HandleMessageCreated(h.ctx, &msg)
	require.NoError(t, err)
	assert.Equal(t, OutcomeKept, outcome)

	stored, err := h.messages.GetByID(h.ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, stored.Hidden)

	entries, err := h.audits.List(h.ctx, repository.AuditQuery{})
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Len(t, h.broadcast.published, 1)
}

func TestEnforcer_TempBan(t *testing.T) {
	tests := []struct {
		name  string
		until time.Time
		want  Outcome
	}{
		{"active", testNow.Add(time.Hour), OutcomeRemoved},
		{"expired", testNow.Add(-time.Hour), OutcomeKept},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.profile("bob", models.RoleUser, testutil.TempBanned(tt.until))
			msg := testutil.CreateMessages(t, h.db, "bob", 1)[0]

			outcome, err := h.enforcer.HandleMessageCreated(h.ctx, &msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome)

			_, err = h.messages.GetByID(h.ctx, msg.ID)
			if tt.want == OutcomeKept {
				assert.NoError(t, err)
			} else {
				assert.True(t, models.IsCode(err, models.CodeNotFound))
			}
		})
	}
}

func TestEnforcer_AuthorWithoutProfileKept(t *testing.T) {
	h := newHarness(t)
	msg := testutil.CreateMessages(t, h.db, "newcomer", 1)[0]

	outcome, err := h.enforcer.HandleMessageCreated(h.ctx, &msg)
	require.NoError(t, err)
	assert.Equal(t, OutcomeKept, outcome)
}

func TestEnforcer_ProfileReadFailureIsRetryable(t *testing.T) {
	h := newHarness(t)
	enforcer := NewEnforcer(failingProfiles{}, h.messages, NewAuditLog(h.audits, nil), nil, nil)
	msg := testutil.CreateMessages(t, h.db, "bob", 1)[0]

	_, err := enforcer.HandleMessageCreated(h.ctx, &msg)
	require.Error(t, err)

	_, err = h.messages.GetByID(h.ctx, msg.ID)
	assert.NoError(t, err)
}

func TestEnforcer_AuditFailureStillRemoves(t *testing.T) {
	h := newHarness(t, withAuditSink(failingAuditSink{}))
	h.profile("bob", models.RoleUser, testutil.Banned())
	msg := testutil.CreateMessages(t, h.db, "bob", 1)[0]

	outcome, err := h.enforcer.HandleMessageCreated(h.ctx, &msg)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRemoved, outcome)
}

func TestEnforcer_DeletedMessageNotBroadcast(t *testing.T) {
	tests := []struct {
		name    string
		profile bool
		opts    []testutil.ProfileOption
		want    Outcome
	}{
		{"clean", true, nil, OutcomeKept},
		{"shadow banned", true, []testutil.ProfileOption{testutil.ShadowBanned()}, OutcomeHidden},
		{"no profile", false, nil, OutcomeKept},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.profile {
				h.profile("dave", models.RoleUser, tt.opts...)
			}
			msg := testutil.CreateMessages(t, h.db, "dave", 1)[0]
			found, err := h.messages.Delete(h.ctx, msg.ID)
			require.NoError(t, err)
			require.True(t, found)

			outcome, err := h.enforcer.HandleMessageCreated(h.ctx, &msg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, outcome)

			assert.Empty(t, h.broadcast.published)
			entries, err := h.audits.List(h.ctx, repository.AuditQuery{})
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}
