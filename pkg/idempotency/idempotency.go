// Package idempotency stores first-writer-wins records keyed by client
// idempotency keys, so retried requests replay the original outcome instead
// of repeating side effects.
package idempotency

import (
	"context"
	"time"
)

// Store persists idempotency records.
type Store interface {
	// Get returns the stored value for key, and whether one exists.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Put stores value under key only if no value exists yet. stored is
	// false when another writer got there first.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) (stored bool, err error)
}

// PaymentKey namespaces payment settlement idempotency keys.
func PaymentKey(key string) string {
	return "payment:" + key
}

// RideKey namespaces ride creation idempotency keys.
func RideKey(key string) string {
	return "ride:" + key
}
