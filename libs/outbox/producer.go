package outbox

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/streamlinepay/platform/libs/db"
	"github.com/streamlinepay/platform/libs/events"
	"github.com/streamlinepay/platform/libs/producer"
)

// TxStore persists an entity inside a caller-owned transaction.
type TxStore[E any] interface {
	SaveTx(ctx context.Context, tx pgx.Tx, entity E) (E, error)
}

// Producer is the transactional alternative to producer.Adapter: the entity
// and its outbox row commit together, and Publisher delivers the event later.
type Producer[E any] struct {
	pool   *db.Pool
	store  TxStore[E]
	repo   *Repository
	logger *slog.Logger
	cfg    producer.Config[E]
}

func NewProducer[E any](pool *db.Pool, store TxStore[E], repo *Repository, logger *slog.Logger, cfg producer.Config[E]) *Producer[E] {
	return &Producer[E]{pool: pool, store: store, repo: repo, logger: logger, cfg: cfg}
}

func (p *Producer[E]) PublishEntityCreated(ctx context.Context, entity E) (E, error) {
	var saved E
	err := p.pool.InTx(ctx, func(tx pgx.Tx) error {
		var err error
		saved, err = p.store.SaveTx(ctx, tx, entity)
		if err != nil {
			return err
		}
		payload, err := events.Encode(p.cfg.EventOf(saved))
		if err != nil {
			return err
		}
		return p.repo.Insert(ctx, tx, Event{
			Topic:       p.cfg.Topic,
			AggregateID: p.cfg.KeyOf(saved),
			EventType:   events.EventType(p.cfg.Topic),
			Payload:     payload,
		})
	})
	if err != nil {
		var zero E
		return zero, err
	}
	p.logger.Info("event queued in outbox", "topic", p.cfg.Topic, "key", p.cfg.KeyOf(saved))
	return saved, nil
}
