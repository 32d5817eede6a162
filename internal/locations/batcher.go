package locations

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/config"
	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/metrics"
	"github.com/velocab/ridecore/pkg/models"
)

// Flusher is the persistence sink for location batches.
type Flusher interface {
	FlushBatch(ctx context.Context, batch []models.DriverLocation) error
}

const (
	flushTimeout      = 5 * time.Second
	flushRetryBackoff = 250 * time.Millisecond
)

// Batcher accumulates position pings and drains them to the Flusher when
// either the batch size or the interval after the first queued entry is
// reached. Drains run on a single goroutine, so overlapping triggers
// coalesce instead of stacking writes.
type Batcher struct {
	flusher Flusher

	batchSize int
	interval  time.Duration
	highWater int

	mu     sync.Mutex
	buf    []models.DriverLocation
	timer  *time.Timer
	closed bool

	kick   chan struct{}
	stopCh chan struct{}
	done   chan struct{}
}

// NewBatcher creates a batcher and starts its drain goroutine.
func NewBatcher(flusher Flusher, cfg *config.LocationConfig) *Batcher {
	b := &Batcher{
		flusher:   flusher,
		batchSize: cfg.BatchSize,
		interval:  cfg.BatchInterval,
		highWater: cfg.BufferHighWater,
		buf:       make([]models.DriverLocation, 0, cfg.BatchSize),
		kick:      make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	b.timer = time.NewTimer(b.interval)
	if !b.timer.Stop() {
		<-b.timer.C
	}
	go b.run()
	return b
}

// Add queues one ping. At the high-water mark the oldest entry for the same
// driver is dropped first (each driver keeps its newest data); with no entry
// for that driver, the oldest overall goes.
func (b *Batcher) Add(loc models.DriverLocation) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}

	if len(b.buf) >= b.highWater {
		b.dropOldest(loc.DriverID)
	}

	b.buf = append(b.buf, loc)
	size := len(b.buf)
	if size == 1 {
		b.timer.Reset(b.interval)
	}
	b.mu.Unlock()

	if size >= b.batchSize {
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
}

// Close drains whatever is buffered and stops the goroutine.
func (b *Batcher) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.stopCh)
	<-b.done
}

func (b *Batcher) run() {
	defer close(b.done)

	for {
		select {
		case <-b.stopCh:
			b.drain()
			return
		case <-b.kick:
			b.drain()
		case <-b.timer.C:
			b.drain()
		}
	}
}

// drain takes the current buffer and flushes it, retrying once with backoff
// before dropping the batch. Called only from the run goroutine.
func (b *Batcher) drain() {
	b.mu.Lock()
	if len(b.buf) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.buf
	b.buf = make([]models.DriverLocation, 0, b.batchSize)
	if !b.timer.Stop() {
		select {
		case <-b.timer.C:
		default:
		}
	}
	b.mu.Unlock()

	metrics.LocationBatchSize.Observe(float64(len(batch)))

	if err := b.flush(batch); err != nil {
		time.Sleep(flushRetryBackoff)
		if err = b.flush(batch); err != nil {
			metrics.LocationFlushFailures.Inc()
			logger.Error("location batch dropped after retry",
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			return
		}
	}

	metrics.LocationBatchWrites.Inc()
}

func (b *Batcher) flush(batch []models.DriverLocation) error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	return b.flusher.FlushBatch(ctx, batch)
}

// dropOldest removes the oldest buffered entry for driverID, or the oldest
// overall when that driver has none buffered. Called with the lock held.
func (b *Batcher) dropOldest(driverID uuid.UUID) {
	victim := 0
	for i, loc := range b.buf {
		if loc.DriverID == driverID {
			victim = i
			break
		}
	}
	b.buf = append(b.buf[:victim], b.buf[victim+1:]...)
	metrics.LocationPingsDropped.Inc()
}
