package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures a KafkaBus.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// KafkaBus publishes message-created events to a topic and consumes them
// through a consumer group. Offsets are committed only after the handler
// succeeds; a failing event is retried with backoff and holds back its
// partition until it goes through.
type KafkaBus struct {
	cfg    KafkaConfig
	writer *kafka.Writer
	reader *kafka.Reader
}

// NewKafkaBus creates a KafkaBus. The reader is created lazily by Run so a
// publish-only process never joins the group.
func NewKafkaBus(cfg KafkaConfig) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka bus requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka bus requires a topic")
	}
	return &KafkaBus{
		cfg: cfg,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
	}, nil
}

// Publish writes evt keyed by author so one author's events stay ordered.
func (b *KafkaBus) Publish(ctx context.Context, evt *MessageCreated) error {
	payload, err := encode(evt)
	if err != nil {
		return err
	}
	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.Message.AuthorID),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

// Run consumes until ctx is cancelled.
func (b *KafkaBus) Run(ctx context.Context, h Handler) error {
	if b.cfg.GroupID == "" {
		return fmt.Errorf("kafka consumer requires group id")
	}
	b.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.cfg.Brokers,
		GroupID:  b.cfg.GroupID,
		Topic:    b.cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	slog.Info("Starting Kafka consumer",
		slog.String("topic", b.cfg.Topic),
		slog.String("group", b.cfg.GroupID))

	for {
		msg, err := b.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		evt, err := decode(msg.Value)
		if err != nil {
			slog.Error("Dropping undecodable event",
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()))
		} else if err := b.deliverWithRetry(ctx, h, evt); err != nil {
			return nil
		}

		if err := b.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

// deliverWithRetry returns only when h succeeds or ctx is done.
func (b *KafkaBus) deliverWithRetry(ctx context.Context, h Handler, evt *MessageCreated) error {
	backoff := 250 * time.Millisecond
	for {
		if err := deliver(ctx, "kafka", h, evt); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 10*time.Second {
			backoff *= 2
		}
	}
}

// Close releases the writer and, if started, the reader.
func (b *KafkaBus) Close() error {
	err := b.writer.Close()
	if b.reader != nil {
		err = errors.Join(err, b.reader.Close())
	}
	return err
}
