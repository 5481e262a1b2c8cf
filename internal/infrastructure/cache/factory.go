package cache

import (
	"github.com/invoiceledger/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewIdempotencyStore returns a Redis store when a client is available and an in-memory one otherwise.
// The in-memory store does not share state across instances, so a duplicate delivery that reaches a
// different instance is processed again.
func NewIdempotencyStore(client redis.UniversalClient, keyPrefix string, logger *zap.Logger) shared.IdempotencyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client != nil {
		logger.Info("Using Redis idempotency store", zap.String("key_prefix", keyPrefix))
		return NewRedisIdempotencyStore(client, keyPrefix)
	}
	logger.Warn("Redis disabled, using in-memory idempotency store")
	return NewInMemoryIdempotencyStore()
}
