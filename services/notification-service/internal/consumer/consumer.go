// Package consumer runs the notification service's Kafka receipt loops.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/streamlinepay/platform/libs/kafkax"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// MessageReader is the subset of *kafka.Reader the loop uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type MessageHandler interface {
	OnMessage(ctx context.Context, topic string, payload []byte) error
}

// Consumer owns one reader per topic and runs a loop for each.
type Consumer struct {
	readers       []MessageReader
	handler       MessageHandler
	logger        *slog.Logger
	retryPause    time.Duration
	commitTimeout time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topics  []string
}

// New builds one consumer-group reader per topic; all share cfg.GroupID so
// several instances split the partitions between them.
func New(logger *slog.Logger, cfg Config, handler MessageHandler) *Consumer {
	readers := make([]MessageReader, 0, len(cfg.Topics))
	for _, topic := range cfg.Topics {
		readers = append(readers, kafkax.NewReader(kafkax.ReaderConfig{
			Brokers: cfg.Brokers,
			GroupID: cfg.GroupID,
			Topic:   topic,
		}))
	}
	return NewWithReaders(logger, handler, readers...)
}

func NewWithReaders(logger *slog.Logger, handler MessageHandler, readers ...MessageReader) *Consumer {
	return &Consumer{
		readers:       readers,
		handler:       handler,
		logger:        logger,
		retryPause:    time.Second,
		commitTimeout: 5 * time.Second,
	}
}

// Run blocks until ctx is cancelled and every loop has finished the message
// it was working on.
func (c *Consumer) Run(ctx context.Context) error {
	var g errgroup.Group
	for _, r := range c.readers {
		g.Go(func() error {
			c.loop(ctx, r)
			return nil
		})
	}
	return g.Wait()
}

func (c *Consumer) loop(ctx context.Context, r MessageReader) {
	defer func() {
		if err := r.Close(); err != nil {
			c.logger.Error("kafka reader close failed", "err", err)
		}
	}()

	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryPause):
			}
			continue
		}

		// Shutdown must not cut a message short, so processing and the
		// commit run on a context that ignores cancellation.
		work := context.WithoutCancel(ctx)
		c.process(work, msg)

		commitCtx, cancel := context.WithTimeout(work, c.commitTimeout)
		if err := r.CommitMessages(commitCtx, msg); err != nil {
			c.logger.Error("kafka commit failed", "err", err, "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
		}
		cancel()
	}
}

// process never fails: errors and panics are logged and the message is
// treated as handled.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	meta := kafkax.ExtractEventMeta(msg)
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
			attribute.String("messaging.message.id", meta.EventID),
		),
	)
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			c.logger.Error("message handler panicked", "err", err, "topic", msg.Topic, "event_id", meta.EventID)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
		}
	}()

	c.logger.Info("message received", "topic", msg.Topic, "event_id", meta.EventID, "partition", msg.Partition, "offset", msg.Offset)
	if err := c.handler.OnMessage(ctxSpan, msg.Topic, msg.Value); err != nil {
		c.logger.Error("message handling failed", "err", err, "topic", msg.Topic, "event_id", meta.EventID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler error")
	}
}
