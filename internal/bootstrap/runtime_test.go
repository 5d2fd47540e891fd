package bootstrap

import (
	"context"
	"testing"
	"time"

	"chatroom/internal/config"
	"chatroom/internal/events"
	"chatroom/internal/models"
	"chatroom/internal/moderation"
	"chatroom/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopHandler(context.Context, *events.MessageCreated) error { return nil }

func TestInitRuntime_SQLiteAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Env:              "development",
		DBDriver:         "sqlite",
		SQLitePath:       "file:bootstrap_runtime?mode=memory&cache=shared",
		RedisURL:         mr.Addr(),
		IdentitySecret:   "runtime-secret-runtime-secret-runtime",
		IdentityIssuer:   "iss",
		IdentityAudience: "aud",
		DevBootstrapRoot: true,
		DevRootID:        "root",
		DevRootName:      "Root",
	}

	rt, err := InitRuntime(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	require.NotNil(t, rt.Redis)
	p := testutil.LoadProfile(t, rt.DB, "root")
	assert.Equal(t, models.RoleGrandWizard, p.Role)
	assert.Equal(t, "Root", p.DisplayName)

	tok, err := rt.Identity.Mint("root", "Root", time.Minute)
	require.NoError(t, err)
	id, err := rt.Identity.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "root", id.ID)
}

func TestEnsureDevRoot(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled outside development", func(t *testing.T) {
		db := testutil.OpenTestDB(t)
		cfg := &config.Config{Env: "production", DevBootstrapRoot: true, DevRootID: "root"}
		require.NoError(t, ensureDevRoot(ctx, cfg, db))

		var count int64
		require.NoError(t, db.Model(&models.UserProfile{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("requires an id", func(t *testing.T) {
		db := testutil.OpenTestDB(t)
		cfg := &config.Config{Env: "development", DevBootstrapRoot: true}
		assert.Error(t, ensureDevRoot(ctx, cfg, db))
	})

	t.Run("promotes an existing profile once", func(t *testing.T) {
		db := testutil.OpenTestDB(t)
		testutil.CreateProfile(t, db, "root")
		cfg := &config.Config{Env: "development", DevBootstrapRoot: true, DevRootID: "root"}

		require.NoError(t, ensureDevRoot(ctx, cfg, db))
		require.NoError(t, ensureDevRoot(ctx, cfg, db))

		assert.Equal(t, models.RoleGrandWizard, testutil.LoadProfile(t, db, "root").Role)

		var entries int64
		require.NoError(t, db.Model(&models.ModerationLogEntry{}).
			Where("action = ?", models.ActionSetRole).Count(&entries).Error)
		assert.EqualValues(t, 1, entries)
	})
}

func TestNewEventBus(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	t.Run("inline", func(t *testing.T) {
		pub, consumer, err := NewEventBus(&config.Config{EventBackend: "inline"}, nil, nopHandler)
		require.NoError(t, err)
		assert.IsType(t, &events.InlineBus{}, pub)
		assert.Nil(t, consumer)
	})

	t.Run("inline without handler", func(t *testing.T) {
		_, _, err := NewEventBus(&config.Config{EventBackend: "inline"}, nil, nil)
		assert.Error(t, err)
	})

	t.Run("redis", func(t *testing.T) {
		cfg := &config.Config{EventBackend: "redis", EventStream: "s", EventGroup: "g"}
		pub, consumer, err := NewEventBus(cfg, rdb, nil)
		require.NoError(t, err)
		assert.IsType(t, &events.RedisStreamBus{}, pub)
		assert.Same(t, pub, consumer)
	})

	t.Run("redis without client", func(t *testing.T) {
		cfg := &config.Config{EventBackend: "redis", EventStream: "s", EventGroup: "g"}
		_, _, err := NewEventBus(cfg, nil, nil)
		assert.ErrorIs(t, err, ErrRedisRequired)
	})

	t.Run("kafka", func(t *testing.T) {
		cfg := &config.Config{EventBackend: "kafka", KafkaBrokers: "localhost:9092", KafkaTopic: "t", EventGroup: "g"}
		pub, consumer, err := NewEventBus(cfg, nil, nil)
		require.NoError(t, err)
		assert.IsType(t, &events.KafkaBus{}, pub)
		assert.NotNil(t, consumer)
		assert.NoError(t, pub.Close())
	})

	t.Run("unknown", func(t *testing.T) {
		_, _, err := NewEventBus(&config.Config{EventBackend: "nats"}, nil, nil)
		assert.Error(t, err)
	})
}

func TestRuntime_NewEnforcer(t *testing.T) {
	db := testutil.OpenTestDB(t)
	testutil.CreateProfile(t, db, "troll", testutil.Banned())
	msgs := testutil.CreateMessages(t, db, "troll", 1)

	rt := &Runtime{Config: &config.Config{}, DB: db}
	outcome, err := rt.NewEnforcer().HandleMessageCreated(context.Background(), &msgs[0])
	require.NoError(t, err)
	assert.Equal(t, moderation.OutcomeRemoved, outcome)
}
