// Package kafka wraps segmentio/kafka-go for the two flows that cross
// processes: the builder announcing artifact generations to searchers, and
// searchers shipping analytics events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/config"
	"github.com/segmentio/kafka-go"
)

// MessageHandler is invoked for each message. A non-nil error leaves the
// message uncommitted.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

const fetchBackoff = time.Second

// Consumer reads messages from a Kafka topic and dispatches them to a
// MessageHandler.
type Consumer struct {
	reader  *kafka.Reader
	logger  *slog.Logger
	handler MessageHandler
}

type consumerOptions struct {
	group       string
	startOffset int64
}

// ConsumerOption adjusts a Consumer.
type ConsumerOption func(*consumerOptions)

// WithGroupID overrides the configured consumer group. Searchers use a
// group per host for generation announcements, since every replica must
// reload.
func WithGroupID(group string) ConsumerOption {
	return func(o *consumerOptions) { o.group = group }
}

// WithStartOffset sets where a new group starts reading: kafka.FirstOffset
// or kafka.LastOffset (the default).
func WithStartOffset(offset int64) ConsumerOption {
	return func(o *consumerOptions) { o.startOffset = offset }
}

// NewConsumer creates a Consumer for the given topic and handler.
func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler, opts ...ConsumerOption) *Consumer {
	o := consumerOptions{group: cfg.ConsumerGroup, startOffset: kafka.LastOffset}
	for _, opt := range opts {
		opt(&o)
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     o.group,
		MinBytes:    1e3,
		MaxBytes:    10e6,
		StartOffset: o.startOffset,
	})
	return &Consumer{
		reader:  r,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic, "group", o.group),
		handler: handler,
	}
}

// Start consumes until ctx is cancelled. Fetch errors are retried after a
// short pause.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			c.logger.Error("fetch failed", "error", err)
			select {
			case <-time.After(fetchBackoff):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
		if gen := Generation(msg); gen > 0 {
			log = log.With("generation", gen)
		}
		log.Debug("message received", "key", string(msg.Key), "value_size", len(msg.Value))
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			log.Error("handler failed, message left uncommitted", "error", err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit failed", "error", err)
		}
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
