package locks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/velocab/ridecore/pkg/common"
)

// releaseScript deletes the lock key only when the stored token matches,
// so a holder whose lease expired cannot release the next holder's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker over Redis SET NX PX for multi-instance
// deployments.
type RedisLocker struct {
	client redis.UniversalClient
}

// NewRedisLocker creates a Redis-backed locker.
func NewRedisLocker(client redis.UniversalClient) *RedisLocker {
	return &RedisLocker{client: client}
}

// Acquire takes the named lock with SET NX PX.
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()

	acquired, err := l.client.SetNX(ctx, name, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !acquired {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lock when token matches, via an atomic compare-and-delete.
func (l *RedisLocker) Release(ctx context.Context, name, token string) error {
	deleted, err := releaseScript.Run(ctx, l.client, []string{name}, token).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	if deleted == 0 {
		// Expired leases release as a no-op; a live lease under a
		// different token is a real conflict.
		current, err := l.client.Get(ctx, name).Result()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("inspect lock %s: %w", name, err)
		}
		if current != token {
			return common.NewConflictError("lock held by another owner")
		}
	}
	return nil
}
