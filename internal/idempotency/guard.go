// Package idempotency short-circuits repeated deliveries of the same
// external message, such as a processor webhook redelivered after a
// timeout. It is an optimisation only: the database transitions are
// idempotent on their own, so every failure here lets the message
// through.
package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard remembers processed keys in Redis for a limited time. Keys are
// recorded only once the message has been handled, so a delivery that
// fails or never finishes leaves nothing behind.
type Guard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// New returns a guard storing keys under prefix. A nil client yields a
// guard that admits everything.
func New(rdb *redis.Client, prefix string, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Guard{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (g *Guard) key(id string) string { return g.prefix + ":" + id }

// Seen reports whether id was already recorded by Mark. Redis errors
// are returned alongside false so the caller processes the message.
func (g *Guard) Seen(ctx context.Context, id string) (bool, error) {
	if g == nil || g.rdb == nil || id == "" {
		return false, nil
	}
	n, err := g.rdb.Exists(ctx, g.key(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records id as processed for the guard's TTL.
func (g *Guard) Mark(ctx context.Context, id string) error {
	if g == nil || g.rdb == nil || id == "" {
		return nil
	}
	return g.rdb.Set(ctx, g.key(id), 1, g.ttl).Err()
}
