package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chatroom/internal/observability"

	"github.com/redis/go-redis/v9"
)

const payloadField = "payload"

// StreamConfig configures a RedisStreamBus.
type StreamConfig struct {
	Stream   string
	Group    string
	Consumer string
	// Block is how long a read waits for new entries. Negative disables
	// blocking.
	Block time.Duration
	Count int64
}

// RedisStreamBus publishes to a Redis stream and consumes it through a
// consumer group. Entries are acknowledged only after the handler succeeds;
// unacknowledged entries are retried before new ones are read.
type RedisStreamBus struct {
	rdb *redis.Client
	cfg StreamConfig
}

// NewRedisStreamBus creates a RedisStreamBus.
func NewRedisStreamBus(rdb *redis.Client, cfg StreamConfig) (*RedisStreamBus, error) {
	if rdb == nil {
		return nil, errors.New("redis stream bus requires a redis client")
	}
	if cfg.Stream == "" || cfg.Group == "" {
		return nil, errors.New("redis stream bus requires a stream and a group")
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "enforcer"
	}
	if cfg.Block == 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Count <= 0 {
		cfg.Count = 16
	}
	return &RedisStreamBus{rdb: rdb, cfg: cfg}, nil
}

// Publish appends evt to the stream.
func (b *RedisStreamBus) Publish(ctx context.Context, evt *MessageCreated) error {
	payload, err := encode(evt)
	if err != nil {
		return err
	}
	if err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.cfg.Stream,
		Values: map[string]any{payloadField: string(payload)},
	}).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("xadd").Inc()
		return fmt.Errorf("publish to stream %s: %w", b.cfg.Stream, err)
	}
	return nil
}

// EnsureGroup creates the consumer group, and the stream if needed. The
// group starts from the beginning of the stream so entries published before
// the first consumer are not skipped.
func (b *RedisStreamBus) EnsureGroup(ctx context.Context) error {
	err := b.rdb.XGroupCreateMkStream(ctx, b.cfg.Stream, b.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		observability.RedisErrorRate.WithLabelValues("xgroup_create").Inc()
		return fmt.Errorf("create consumer group %s: %w", b.cfg.Group, err)
	}
	return nil
}

// Run consumes until ctx is cancelled.
func (b *RedisStreamBus) Run(ctx context.Context, h Handler) error {
	if err := b.EnsureGroup(ctx); err != nil {
		return err
	}
	slog.Info("Starting Redis stream consumer",
		slog.String("stream", b.cfg.Stream),
		slog.String("group", b.cfg.Group),
		slog.String("consumer", b.cfg.Consumer))

	for {
		if ctx.Err() != nil {
			slog.Info("Stopping Redis stream consumer")
			return nil
		}
		if _, err := b.ProcessOnce(ctx, h); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("Error reading from stream", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOnce retries this consumer's pending entries, then reads one batch
// of new entries. It returns how many entries were handled successfully.
func (b *RedisStreamBus) ProcessOnce(ctx context.Context, h Handler) (int, error) {
	retried, err := b.read(ctx, "0", -1, h)
	if err != nil {
		return retried, err
	}
	fresh, err := b.read(ctx, ">", b.cfg.Block, h)
	return retried + fresh, err
}

func (b *RedisStreamBus) read(ctx context.Context, from string, block time.Duration, h Handler) (int, error) {
	streams, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    b.cfg.Group,
		Consumer: b.cfg.Consumer,
		Streams:  []string{b.cfg.Stream, from},
		Count:    b.cfg.Count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("xreadgroup").Inc()
		return 0, err
	}

	handled := 0
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if b.handle(ctx, msg, h) {
				handled++
			}
		}
	}
	return handled, nil
}

// handle delivers one entry and acknowledges it unless the handler failed.
// Entries that cannot be decoded are acknowledged and dropped.
func (b *RedisStreamBus) handle(ctx context.Context, msg redis.XMessage, h Handler) bool {
	raw, _ := msg.Values[payloadField].(string)
	evt, err := decode([]byte(raw))
	if err != nil {
		observability.EventDeliveries.WithLabelValues("redis", "dropped").Inc()
		observability.LogAsyncOperationError(ctx, "event_decode", err, map[string]any{
			"stream":   b.cfg.Stream,
			"entry_id": msg.ID,
		})
		b.ack(ctx, msg.ID)
		return false
	}
	if err := deliver(ctx, "redis", h, evt); err != nil {
		return false
	}
	b.ack(ctx, msg.ID)
	return true
}

func (b *RedisStreamBus) ack(ctx context.Context, id string) {
	if err := b.rdb.XAck(ctx, b.cfg.Stream, b.cfg.Group, id).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("xack").Inc()
		observability.LogAsyncOperationError(ctx, "event_ack", err, map[string]any{
			"stream":   b.cfg.Stream,
			"entry_id": id,
		})
	}
}

// Close implements Publisher and Consumer. The Redis client is owned by the
// caller.
func (b *RedisStreamBus) Close() error { return nil }
