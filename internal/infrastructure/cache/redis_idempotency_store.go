package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wms/stocktaking/internal/domain/shared"
)

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)

const defaultIdempotencyPrefix = "stocktaking:event:"

// RedisIdempotencyStore shares handled event IDs between server instances.
type RedisIdempotencyStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisIdempotencyStore wraps an existing client. The client is not closed
// by Close; its owner closes it.
func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = defaultIdempotencyPrefix
	}
	return &RedisIdempotencyStore{client: client, keyPrefix: keyPrefix}
}

// MarkProcessed uses SET NX so concurrent deliveries race on a single key
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.keyPrefix+eventID, 1, ttl).Result()
	if err != nil {
		return false, shared.Network("mark event processed", err)
	}
	return ok, nil
}

// Close is a no-op; the shared client is closed by its owner
func (s *RedisIdempotencyStore) Close() error {
	return nil
}
