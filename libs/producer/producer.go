// Package producer persists an entity and then announces its creation on the
// broker. The two steps are not atomic: once Save succeeds the entity is
// returned to the caller even if the event never reaches the broker.
package producer

import (
	"context"
	"log/slog"

	"github.com/streamlinepay/platform/libs/events"
)

// Store persists an entity and returns it with its assigned ID.
type Store[E any] interface {
	Save(ctx context.Context, entity E) (E, error)
}

// MessagePublisher is the broker side; kafkax.Writer implements it.
type MessagePublisher interface {
	Publish(ctx context.Context, topic, key, eventType string, value []byte) error
}

// Adapter wires a Store to a topic.
type Adapter[E any] struct {
	store     Store[E]
	publisher MessagePublisher
	logger    *slog.Logger
	topic     string
	keyOf     func(E) string
	eventOf   func(E) any
}

type Config[E any] struct {
	Topic string
	// KeyOf returns the partition key, the entity ID.
	KeyOf func(E) string
	// EventOf maps the persisted entity to its wire event.
	EventOf func(E) any
}

func New[E any](store Store[E], publisher MessagePublisher, logger *slog.Logger, cfg Config[E]) *Adapter[E] {
	return &Adapter[E]{
		store:     store,
		publisher: publisher,
		logger:    logger,
		topic:     cfg.Topic,
		keyOf:     cfg.KeyOf,
		eventOf:   cfg.EventOf,
	}
}

// PublishEntityCreated saves entity, then publishes its event keyed by the
// assigned ID. Only a Save error is returned.
func (a *Adapter[E]) PublishEntityCreated(ctx context.Context, entity E) (E, error) {
	saved, err := a.store.Save(ctx, entity)
	if err != nil {
		var zero E
		return zero, err
	}

	key := a.keyOf(saved)
	payload, err := events.Encode(a.eventOf(saved))
	if err != nil {
		a.logger.Error("event encode failed", "err", err, "topic", a.topic, "key", key)
		return saved, nil
	}
	if err := a.publisher.Publish(ctx, a.topic, key, events.EventType(a.topic), payload); err != nil {
		a.logger.Error("event publish failed", "err", err, "topic", a.topic, "key", key)
		return saved, nil
	}
	a.logger.Info("event published", "topic", a.topic, "key", key)
	return saved, nil
}
