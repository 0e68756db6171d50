// Package dedup remembers which notifications were already sent so a
// redelivered event does not email twice within the retention window.
package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store claims a key; ok is false when the key was claimed before. Release
// gives a claim back after a failed send.
type Store interface {
	Claim(ctx context.Context, key string) (ok bool, err error)
	Release(ctx context.Context, key string) error
}

// Nop claims every key. Duplicates are then accepted.
type Nop struct{}

func (Nop) Claim(context.Context, string) (bool, error) { return true, nil }

func (Nop) Release(context.Context, string) error { return nil }

type redisClaimer interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisStore struct {
	rdb    redisClaimer
	ttl    time.Duration
	prefix string
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration, prefix string) *RedisStore {
	return newRedisStore(rdb, ttl, prefix)
}

func newRedisStore(rdb redisClaimer, ttl time.Duration, prefix string) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if prefix == "" {
		prefix = "notif"
	}
	return &RedisStore{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (s *RedisStore) Claim(ctx context.Context, key string) (bool, error) {
	return s.rdb.SetNX(ctx, s.prefix+":"+key, 1, s.ttl).Result()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+":"+key).Err()
}
