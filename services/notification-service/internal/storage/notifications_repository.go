package storage

import (
	"context"

	"github.com/streamlinepay/platform/libs/db"
)

const (
	StatusSent      = "sent"
	StatusFailed    = "failed"
	StatusDuplicate = "duplicate"
)

// Delivery is one attempt to send one notification.
type Delivery struct {
	EventID     string
	Topic       string
	Kind        string
	Recipients  []string
	Subject     string
	Status      string
	ErrorReason string
}

// Recorder keeps the delivery log.
type Recorder interface {
	Record(ctx context.Context, d Delivery) error
}

type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Delivery) error { return nil }

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Record(ctx context.Context, d Delivery) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, topic, kind, recipients, subject, status, error_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.EventID, d.Topic, d.Kind, d.Recipients, d.Subject, d.Status, d.ErrorReason)
	return err
}
