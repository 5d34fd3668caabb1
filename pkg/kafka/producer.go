package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/pkg/config"
)

// TypeHeader carries Event.Type on the wire so consumers sharing a topic can
// skip payloads they do not understand.
const TypeHeader = "event-type"

// Publisher is what the build job and the ingestion service depend on;
// tests substitute an in-memory recorder.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Event is one message. Key picks the partition, Value is JSON-encoded and
// Type, when set, travels as the TypeHeader header.
type Event struct {
	Key   string
	Type  string
	Value any
}

// ProducerOption adjusts the underlying writer.
type ProducerOption func(*kafka.Writer)

// WithCompression compresses message batches. Article payloads run to
// hundreds of kilobytes, so the ingestion producer uses lz4.
func WithCompression(c kafka.Compression) ProducerOption {
	return func(w *kafka.Writer) { w.Compression = c }
}

// Producer writes events to one topic and waits for every in-sync replica.
type Producer struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewProducer(cfg config.KafkaConfig, topic string, opts ...ProducerOption) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	for _, opt := range opts {
		opt(w)
	}
	return &Producer{
		writer: w,
		logger: slog.Default().With("component", "kafka-producer", "topic", topic),
	}
}

// Publish encodes and writes one event synchronously.
func (p *Producer) Publish(ctx context.Context, event Event) error {
	msg, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("publish failed", "key", event.Key, "type", event.Type, "error", err)
		return fmt.Errorf("publishing %s to kafka: %w", p.writer.Topic, err)
	}
	p.logger.Debug("published", "key", event.Key, "type", event.Type, "bytes", len(msg.Value))
	return nil
}

func encode(event Event) (kafka.Message, error) {
	value, err := json.Marshal(event.Value)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encoding %q event: %w", event.Type, err)
	}
	msg := kafka.Message{Key: []byte(event.Key), Value: value}
	if event.Type != "" {
		msg.Headers = []kafka.Header{{Key: TypeHeader, Value: []byte(event.Type)}}
	}
	return msg, nil
}

// EventType returns the TypeHeader value of msg, or "" if it has none.
func EventType(msg Message) string {
	for _, h := range msg.Headers {
		if h.Key == TypeHeader {
			return string(h.Value)
		}
	}
	return ""
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
