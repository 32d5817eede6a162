package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is the in-process Store. Expired records are treated as
// absent on read and swept by a janitor goroutine.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	stopCh  chan struct{}
	once    sync.Once
}

// NewMemoryStore creates an in-process store and starts its janitor.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]memoryRecord),
		stopCh:  make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Get returns the live record for key, if any.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found := s.records[key]
	if !found || time.Now().After(rec.expiresAt) {
		delete(s.records, key)
		return nil, false, nil
	}

	// Copy so callers cannot mutate the stored record.
	out := make([]byte, len(rec.value))
	copy(out, rec.value)
	return out, true, nil
}

// Put stores value under key unless a live record already exists.
func (s *MemoryStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, found := s.records[key]; found && now.Before(rec.expiresAt) {
		return false, nil
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	s.records[key] = memoryRecord{value: stored, expiresAt: now.Add(ttl)}
	return true, nil
}

// Close stops the janitor.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stopCh) })
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for key, rec := range s.records {
				if now.After(rec.expiresAt) {
					delete(s.records, key)
				}
			}
			s.mu.Unlock()
		}
	}
}
