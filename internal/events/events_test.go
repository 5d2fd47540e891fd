package events

import (
	"context"
	"errors"
	"testing"

	"chatroom/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamBus(t *testing.T) (*RedisStreamBus, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	bus, err := NewRedisStreamBus(rdb, StreamConfig{
		Stream:   "test:messages",
		Group:    "enforcement",
		Consumer: "worker-1",
		Block:    -1,
	})
	require.NoError(t, err)
	require.NoError(t, bus.EnsureGroup(context.Background()))
	return bus, rdb
}

func testEvent(id string) *MessageCreated {
	return NewMessageCreated(context.Background(), &models.Message{ID: id, AuthorID: "bob", Text: "hi"})
}

func TestRedisStreamBus_DeliversAndAcks(t *testing.T) {
	bus, rdb := newStreamBus(t)
	ctx := context.Background()

	require.NoError(t, bus.Publish(ctx, testEvent("m1")))
	require.NoError(t, bus.Publish(ctx, testEvent("m2")))

	var seen []string
	n, err := bus.ProcessOnce(ctx, func(_ context.Context, evt *MessageCreated) error {
		seen = append(seen, evt.Message.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"m1", "m2"}, seen)

	// Acknowledged entries are not delivered again.
	n, err = bus.ProcessOnce(ctx, func(context.Context, *MessageCreated) error {
		t.Fatal("unexpected redelivery")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, n)

	length, err := rdb.XLen(ctx, "test:messages").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 2, length)
}

func TestRedisStreamBus_FailedDeliveryIsRetried(t *testing.T) {
	bus, _ := newStreamBus(t)
	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, testEvent("m1")))

	attempts := 0
	h := func(context.Context, *MessageCreated) error {
		attempts++
		if attempts == 1 {
			return errors.New("profile store offline")
		}
		return nil
	}

	n, err := bus.ProcessOnce(ctx, h)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = bus.ProcessOnce(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, attempts)

	n, err = bus.ProcessOnce(ctx, h)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, attempts)
}

func TestRedisStreamBus_DropsUndecodableEntries(t *testing.T) {
	bus, rdb := newStreamBus(t)
	ctx := context.Background()

	require.NoError(t, rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: "test:messages",
		Values: map[string]any{payloadField: "not json"},
	}).Err())

	called := false
	n, err := bus.ProcessOnce(ctx, func(context.Context, *MessageCreated) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, called)

	_, err = bus.ProcessOnce(ctx, func(context.Context, *MessageCreated) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestRedisStreamBus_EnsureGroupIsIdempotent(t *testing.T) {
	bus, _ := newStreamBus(t)
	assert.NoError(t, bus.EnsureGroup(context.Background()))
}

func TestInlineBus(t *testing.T) {
	var got *MessageCreated
	bus := NewInlineBus(func(_ context.Context, evt *MessageCreated) error {
		got = evt
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), &MessageCreated{Message: models.Message{ID: "m1", AuthorID: "bob"}}))
	require.NotNil(t, got)
	assert.Equal(t, TypeMessageCreated, got.Type)
	assert.Equal(t, "m1", got.Message.ID)

	failing := NewInlineBus(func(context.Context, *MessageCreated) error {
		return errors.New("profile store down")
	})
	assert.EqualError(t, failing.Publish(context.Background(), testEvent("m1")), "profile store down")

	assert.NoError(t, NewInlineBus(nil).Publish(context.Background(), testEvent("m2")))
}

func TestDecode(t *testing.T) {
	payload, err := encode(testEvent("m1"))
	require.NoError(t, err)
	evt, err := decode(payload)
	require.NoError(t, err)
	assert.Equal(t, "bob", evt.Message.AuthorID)

	_, err = decode([]byte(`{"type":"user.created","message":{"id":"m1","author_id":"bob"}}`))
	assert.Error(t, err)

	_, err = decode([]byte(`{"type":"message.created","message":{"id":"m1"}}`))
	assert.Error(t, err)
}

func TestNewKafkaBus_Validation(t *testing.T) {
	_, err := NewKafkaBus(KafkaConfig{Topic: "t"})
	assert.Error(t, err)

	_, err = NewKafkaBus(KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	bus, err := NewKafkaBus(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"})
	require.NoError(t, err)
	assert.Error(t, bus.Run(context.Background(), nil), "consumer needs a group id")
	assert.NoError(t, bus.Close())
}

func TestNewRedisStreamBus_Validation(t *testing.T) {
	_, err := NewRedisStreamBus(nil, StreamConfig{Stream: "s", Group: "g"})
	assert.Error(t, err)

	_, err = NewRedisStreamBus(redis.NewClient(&redis.Options{}), StreamConfig{})
	assert.Error(t, err)
}
