// Package locks provides named mutual-exclusion leases with TTLs. Locks are
// advisory: holders get a fencing token and releases are compare-and-swap on
// that token, so an expired holder cannot release a successor's lock.
package locks

import (
	"context"
	"time"

	"github.com/velocab/ridecore/pkg/common"
)

// Locker acquires and releases named TTL leases.
type Locker interface {
	// Acquire attempts to take the named lock. ok is false when the lock
	// is held by someone else; token identifies this acquisition.
	Acquire(ctx context.Context, name string, ttl time.Duration) (token string, ok bool, err error)

	// Release frees the lock only if token still matches the holder.
	Release(ctx context.Context, name, token string) error
}

// WithLock runs fn while holding the named lock and releases it afterwards,
// on success and failure alike. A lock already held elsewhere maps to the
// conflict kind so HTTP callers see 409.
func WithLock(ctx context.Context, locker Locker, name string, ttl time.Duration, fn func(ctx context.Context) error) error {
	token, ok, err := locker.Acquire(ctx, name, ttl)
	if err != nil {
		return common.NewDependencyError("lock acquisition failed", err)
	}
	if !ok {
		return common.NewConflictError("operation already in progress")
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = locker.Release(releaseCtx, name, token)
	}()

	return fn(ctx)
}

// MatchingLockName is the per-ride lock serializing driver acceptance and
// cancellation during matching.
func MatchingLockName(rideID string) string {
	return "lock:ride:" + rideID + ":matching"
}
