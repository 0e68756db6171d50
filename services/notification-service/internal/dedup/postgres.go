package dedup

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/streamlinepay/platform/libs/db"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore keeps claims in notification_claims. A claim older than ttl
// can be taken again.
type PostgresStore struct {
	db  execer
	ttl time.Duration
}

func NewPostgresStore(pool *db.Pool, ttl time.Duration) *PostgresStore {
	return newPostgresStore(pool, ttl)
}

func newPostgresStore(q execer, ttl time.Duration) *PostgresStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PostgresStore{db: q, ttl: ttl}
}

func (s *PostgresStore) Claim(ctx context.Context, key string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO notification_claims (claim_key)
		VALUES ($1)
		ON CONFLICT (claim_key) DO UPDATE SET claimed_at = now()
		WHERE notification_claims.claimed_at < now() - $2 * interval '1 second'
	`, key, s.ttl.Seconds())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Release(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM notification_claims WHERE claim_key = $1`, key)
	return err
}
