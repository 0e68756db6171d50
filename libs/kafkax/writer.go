package kafkax

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// Writer publishes keyed messages. Messages with the same key land on the same
// partition, which keeps per-entity ordering.
type Writer struct {
	w *kafka.Writer
}

type WriterConfig struct {
	Brokers string
	// WriteTimeout bounds a single publish; zero means 10s.
	WriteTimeout time.Duration
	// AllowAutoTopicCreation lets the broker create "users" and
	// "transactions" on first publish.
	AllowAutoTopicCreation bool
}

func NewWriter(cfg WriterConfig) (*Writer, error) {
	brokers := SplitBrokers(cfg.Brokers)
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Writer{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: cfg.AllowAutoTopicCreation,
	}}, nil
}

// Publish writes value to topic keyed by key, tagging it with the event
// headers and the trace context of ctx.
func (w *Writer) Publish(ctx context.Context, topic, key, eventType string, value []byte) error {
	return w.w.WriteMessages(ctx, NewMessage(ctx, topic, key, eventType, value))
}

// WriteMessages passes already-built messages through, as the outbox relay needs.
func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return w.w.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.w.Close()
}

// NewMessage builds the message for one event; the event id is the key.
func NewMessage(ctx context.Context, topic, key, eventType string, value []byte) kafka.Message {
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventID, Value: []byte(key)},
			{Key: HeaderEventType, Value: []byte(eventType)},
		},
	}
	msg.Headers = InjectTraceHeaders(ctx, msg.Headers)
	return msg
}
