package kafkax

import (
	"github.com/segmentio/kafka-go"
)

type ReaderConfig struct {
	Brokers string
	GroupID string
	Topic   string
}

// NewReader returns a consumer-group reader for one topic. Offsets are
// committed explicitly by the caller (CommitMessages), not on read.
func NewReader(cfg ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}
