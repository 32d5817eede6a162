package locks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/velocab/ridecore/pkg/common"
)

type memoryLease struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is the in-process Locker for single-instance deployments and
// tests. A janitor goroutine sweeps expired leases; Acquire also treats an
// expired lease as free, so correctness does not depend on sweep timing.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryLease
	stopCh chan struct{}
	once   sync.Once
}

// NewMemoryLocker creates an in-process locker and starts its janitor.
func NewMemoryLocker() *MemoryLocker {
	l := &MemoryLocker{
		leases: make(map[string]memoryLease),
		stopCh: make(chan struct{}),
	}
	go l.janitor()
	return l
}

// Acquire takes the named lock if free or expired.
func (l *MemoryLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if lease, held := l.leases[name]; held && now.Before(lease.expiresAt) {
		return "", false, nil
	}

	token := uuid.New().String()
	l.leases[name] = memoryLease{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Release frees the lock when token matches the current holder.
func (l *MemoryLocker) Release(ctx context.Context, name, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	lease, held := l.leases[name]
	if !held || time.Now().After(lease.expiresAt) {
		// Already expired or released; nothing to do.
		delete(l.leases, name)
		return nil
	}
	if lease.token != token {
		return common.NewConflictError("lock held by another owner")
	}

	delete(l.leases, name)
	return nil
}

// Close stops the janitor.
func (l *MemoryLocker) Close() {
	l.once.Do(func() { close(l.stopCh) })
}

func (l *MemoryLocker) janitor() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for name, lease := range l.leases {
				if now.After(lease.expiresAt) {
					delete(l.leases, name)
				}
			}
			l.mu.Unlock()
		}
	}
}
