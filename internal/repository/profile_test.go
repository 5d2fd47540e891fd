package repository

import (
	"context"
	"testing"
	"time"

	"chatroom/internal/cache"
	"chatroom/internal/models"
	"chatroom/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestProfileRepository_UpdateFieldsIsSingleStatement(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProfileRepository(db, nil, 0)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "user_profiles" SET .+ WHERE id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	until := time.Now().Add(time.Hour)
	err := repo.UpdateFields(context.Background(), "u1", map[string]any{
		"banned":       true,
		"banned_until": &until,
		"ban_type":     models.BanTypeTemp,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_UpdateFieldsMissingProfile(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewProfileRepository(db, nil, 0)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "user_profiles"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateFields(context.Background(), "ghost", map[string]any{"shadow_banned": true})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProfileRepository_GetMissingIsNil(t *testing.T) {
	repo := NewProfileRepository(testutil.OpenTestDB(t), nil, 0)
	p, err := repo.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestProfileRepository_CreateIsIdempotent(t *testing.T) {
	repo := NewProfileRepository(testutil.OpenTestDB(t), nil, 0)
	ctx := context.Background()

	created, err := repo.Create(ctx, models.NewUserProfile("u1", "Ada", ""))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, models.NewUserProfile("u1", "Imposter", ""))
	require.NoError(t, err)
	assert.False(t, created)

	p, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.DisplayName)
}

func TestProfileRepository_CacheInvalidatedOnUpdate(t *testing.T) {
	db := testutil.OpenTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	repo := NewProfileRepository(db, cache.NewStore(client), time.Minute)
	ctx := context.Background()
	testutil.CreateProfile(t, db, "u1")

	p, err := repo.GetCached(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, p.ShadowBanned)
	assert.True(t, mr.Exists(cache.ProfileKey("u1")))

	require.NoError(t, repo.UpdateFields(ctx, "u1", map[string]any{"shadow_banned": true}))
	assert.False(t, mr.Exists(cache.ProfileKey("u1")))

	p, err = repo.GetCached(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, p.ShadowBanned)

	missing, err := repo.GetCached(ctx, "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProfileRepository_RoleRoundTrip(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewProfileRepository(db, nil, 0)
	ctx := context.Background()
	testutil.CreateProfile(t, db, "gw", testutil.WithRole(models.RoleGrandWizard))

	p, err := repo.Get(ctx, "gw")
	require.NoError(t, err)
	assert.Equal(t, models.RoleGrandWizard, p.Role)

	var raw string
	require.NoError(t, db.Raw("SELECT role FROM user_profiles WHERE id = ?", "gw").Scan(&raw).Error)
	assert.Equal(t, "GrandWizard", raw)
}
