package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store over Redis for multi-instance deployments.
// Put relies on SET NX so concurrent writers resolve to a single record.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a Redis-backed store. All keys are namespaced under
// "idem:".
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "idem:"}
}

// Get returns the stored record for key, if any.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get idempotency record %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores value under key unless a record already exists.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	stored, err := s.client.SetNX(ctx, s.prefix+key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("put idempotency record %s: %w", key, err)
	}
	return stored, nil
}
