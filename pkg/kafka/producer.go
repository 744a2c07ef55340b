package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Book-Search-Engine/pkg/config"
	"github.com/segmentio/kafka-go"
)

// GenerationHeader carries the artifact generation an event belongs to, so
// consumers can route or log it without decoding the payload.
const GenerationHeader = "generation"

// Event is the unit of data published to Kafka. Key is used for partition
// hashing and Value is JSON-serialised. A non-zero Generation is sent as a
// header.
type Event struct {
	Key        string
	Value      any
	Generation uint64
}

// Producer publishes JSON-encoded events to a Kafka topic.
type Producer struct {
	writer *kafka.Writer
	topic  string
	logger *slog.Logger
}

// NewProducer creates a Producer for the given topic.
func NewProducer(cfg config.KafkaConfig, topic string) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{
		writer: w,
		topic:  topic,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

func encode(events []Event) ([]kafka.Message, int, error) {
	messages := make([]kafka.Message, 0, len(events))
	size := 0
	for _, event := range events {
		value, err := json.Marshal(event.Value)
		if err != nil {
			return nil, 0, fmt.Errorf("marshaling %q event: %w", event.Key, err)
		}
		msg := kafka.Message{Key: []byte(event.Key), Value: value}
		if event.Generation > 0 {
			msg.Headers = []kafka.Header{{
				Key:   GenerationHeader,
				Value: []byte(strconv.FormatUint(event.Generation, 10)),
			}}
		}
		messages = append(messages, msg)
		size += len(value)
	}
	return messages, size, nil
}

// Generation reads the generation header of msg; 0 means none.
func Generation(msg kafka.Message) uint64 {
	for _, h := range msg.Headers {
		if h.Key == GenerationHeader {
			gen, err := strconv.ParseUint(string(h.Value), 10, 64)
			if err != nil {
				return 0
			}
			return gen
		}
	}
	return 0
}

// Publish writes a single event synchronously.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	return p.PublishBatch(ctx, []Event{event})
}

// PublishBatch writes events to Kafka in a single write call.
func (p *Producer) PublishBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	messages, size, err := encode(events)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.Error("publish failed", "count", len(messages), "error", err)
		return fmt.Errorf("publishing %d events to %s: %w", len(messages), p.topic, err)
	}
	p.logger.Debug("published", "count", len(messages), "bytes", size)
	return nil
}

// Close flushes pending writes and closes the underlying Kafka writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
