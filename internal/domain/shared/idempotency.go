package shared

import (
	"context"
	"time"
)

// IdempotencyStore is a set of keys with expiry. Event handlers claim "event:{handler}:{id}"
// and the payment endpoint claims "payment:{tenant}:{invoice}:{Idempotency-Key}".
type IdempotencyStore interface {
	// MarkProcessed claims key for ttl and reports whether this call claimed it
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsProcessed(ctx context.Context, key string) (bool, error)
	// Release gives a claimed key back, e.g. after the payment it guarded was rejected
	Release(ctx context.Context, key string) error
	Close() error
}

// IdempotencyConfig controls event deduplication
type IdempotencyConfig struct {
	TTL     time.Duration
	Enabled bool
}
