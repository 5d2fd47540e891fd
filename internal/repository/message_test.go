package repository

import (
	"context"
	"testing"

	"chatroom/internal/models"
	"chatroom/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRepository_DeleteBatchByAuthor(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	testutil.CreateMessages(t, db, "spammer", 7)
	testutil.CreateMessages(t, db, "bystander", 2)

	n, err := repo.DeleteBatchByAuthor(ctx, "spammer", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = repo.DeleteBatchByAuthor(ctx, "spammer", 10)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	n, err = repo.DeleteBatchByAuthor(ctx, "spammer", 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	left, err := repo.CountByAuthor(ctx, "bystander")
	require.NoError(t, err)
	assert.EqualValues(t, 2, left)
}

func TestMessageRepository_ListVisibility(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	visible := testutil.CreateMessages(t, db, "alice", 2)
	hidden := testutil.CreateMessages(t, db, "shadow", 1)
	ok, err := repo.SetHidden(ctx, hidden[0].ID, true)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.SetHidden(ctx, hidden[0].ID, true)
	require.NoError(t, err)
	assert.False(t, ok, "already hidden")

	anon, err := repo.List(ctx, MessageQuery{})
	require.NoError(t, err)
	assert.Len(t, anon, 2)

	own, err := repo.List(ctx, MessageQuery{ViewerID: "shadow"})
	require.NoError(t, err)
	assert.Len(t, own, 3)

	mod, err := repo.List(ctx, MessageQuery{IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, mod, 3)

	// Oldest first.
	assert.Equal(t, visible[0].ID, anon[0].ID)
	assert.Equal(t, visible[1].ID, anon[1].ID)

	before := visible[1].CreatedAt
	page, err := repo.List(ctx, MessageQuery{Before: &before})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, visible[0].ID, page[0].ID)
}

func TestMessageRepository_MissingMessage(t *testing.T) {
	repo := NewMessageRepository(testutil.OpenTestDB(t))
	ctx := context.Background()

	ok, err := repo.SetHidden(ctx, "gone", true)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Exists(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Delete(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.GetByID(ctx, "gone")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestAuditRepository_AppendAndList(t *testing.T) {
	repo := NewAuditRepository(testutil.OpenTestDB(t))
	ctx := context.Background()

	target := "u1"
	require.NoError(t, repo.Append(ctx, &models.ModerationLogEntry{
		Action:   models.ActionShadowBan,
		TargetID: &target,
		Metadata: models.LogMetadata{"shadowBanned": true},
	}))
	require.NoError(t, repo.Append(ctx, &models.ModerationLogEntry{
		Action: models.ActionMessageRemovedBannedAuthor,
	}))

	entries, err := repo.List(ctx, AuditQuery{TargetID: "u1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].ID)
	assert.Nil(t, entries[0].ActorID)
	assert.Equal(t, true, entries[0].Metadata["shadowBanned"])
}
