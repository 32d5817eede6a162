package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/velocab/ridecore/pkg/logger"
	redisclient "github.com/velocab/ridecore/pkg/redis"
	"go.uber.org/zap"
)

// Manager is the shared object cache for ride and driver projections.
// Entries are eventually consistent: every mutation invalidates, and all
// authoritative decisions read from the persistence store inside a
// transaction, so a stale hit is never load-bearing.
type Manager struct {
	redis *redisclient.Client
}

// NewManager creates a new cache manager
func NewManager(redis *redisclient.Client) *Manager {
	return &Manager{redis: redis}
}

// ErrCacheDisabled is returned from reads when no backing store is wired.
// A nil Manager behaves as an always-miss cache so single-instance deploys
// without Redis need no special casing at call sites.
var ErrCacheDisabled = fmt.Errorf("cache disabled")

// Get retrieves a cached value and unmarshals it into result
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	if m == nil || m.redis == nil {
		return ErrCacheDisabled
	}
	data, err := m.redis.GetString(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), result)
}

// Set marshals and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m == nil || m.redis == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return m.redis.SetWithExpiration(ctx, key, string(data), ttl)
}

// GetOrSet retrieves from cache or executes fn and caches the result.
func (m *Manager) GetOrSet(ctx context.Context, key string, ttl time.Duration, result interface{}, fn func() (interface{}, error)) error {
	if err := m.Get(ctx, key, result); err == nil {
		return nil
	}

	data, err := fn()
	if err != nil {
		return err
	}

	if err := m.Set(ctx, key, data, ttl); err != nil {
		logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, result)
}

// Delete removes keys from the cache; used as the invalidation hook on
// every mutation.
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if m == nil || m.redis == nil {
		return nil
	}
	return m.redis.Delete(ctx, keys...)
}

// CacheKeys defines the cache key patterns used by the engine
type CacheKeys struct{}

var Keys = CacheKeys{}

// Ride returns the cache key for a ride projection
func (k CacheKeys) Ride(rideID string) string {
	return fmt.Sprintf("ride:obj:%s", rideID)
}

// Driver returns the cache key for a driver profile
func (k CacheKeys) Driver(driverID string) string {
	return fmt.Sprintf("driver:obj:%s", driverID)
}

// ActiveRide returns the cache key mapping a driver to their active ride
func (k CacheKeys) ActiveRide(driverID string) string {
	return fmt.Sprintf("driver:active_ride:%s", driverID)
}

// Trip returns the cache key for a trip projection
func (k CacheKeys) Trip(tripID string) string {
	return fmt.Sprintf("trip:obj:%s", tripID)
}

// TTL defines common cache TTL durations
type CacheTTL struct{}

var TTL = CacheTTL{}

func (t CacheTTL) Short() time.Duration  { return 5 * time.Minute }
func (t CacheTTL) Medium() time.Duration { return 15 * time.Minute }
func (t CacheTTL) Long() time.Duration   { return 1 * time.Hour }
