package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name string `json:"name"`
}

func TestStore_Aside(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewStore(client)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *item) func() error {
		return func() error {
			calls++
			dest.Name = "from-db"
			return nil
		}
	}

	var first item
	require.NoError(t, store.Aside(ctx, ProfileKey("u1"), &first, time.Minute, fetch(&first)))
	assert.Equal(t, "from-db", first.Name)

	var second item
	require.NoError(t, store.Aside(ctx, ProfileKey("u1"), &second, time.Minute, fetch(&second)))
	assert.Equal(t, "from-db", second.Name)
	assert.Equal(t, 1, calls)
	assert.True(t, mr.Exists("profile:u1"))

	store.InvalidateProfile(ctx, "u1")
	assert.False(t, mr.Exists("profile:u1"))
}

func TestStore_AsidePropagatesFetchError(t *testing.T) {
	store := NewStore(nil)
	var dest item
	err := store.Aside(context.Background(), "k", &dest, time.Minute, func() error {
		return errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
}

func TestStore_NilClientAlwaysMisses(t *testing.T) {
	store := NewStore(nil)
	found, err := store.GetJSON(context.Background(), "k", &item{})
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, store.SetJSON(context.Background(), "k", item{}, time.Minute))
	store.Invalidate(context.Background(), "k")
}

func TestStore_RedisOutageFallsBackToFetch(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	var dest item
	err := NewStore(client).Aside(context.Background(), "k", &dest, time.Minute, func() error {
		dest.Name = "fresh"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", dest.Name)
}

func TestParseAddr(t *testing.T) {
	opts, err := ParseAddr("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)

	opts, err = ParseAddr("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	_, err = ParseAddr("  ")
	assert.Error(t, err)
	_, err = ParseAddr("redis://cache:6380/notadb")
	assert.Error(t, err)
}

func TestInitRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	rdb := InitRedis(addr)
	require.NotNil(t, rdb)
	_ = rdb.Close()

	mr.Close()
	assert.Nil(t, InitRedis(addr))
}
