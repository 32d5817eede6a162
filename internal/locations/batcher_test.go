package locations

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocab/ridecore/pkg/config"
	"github.com/velocab/ridecore/pkg/models"
)

type recordingFlusher struct {
	mu      sync.Mutex
	batches [][]models.DriverLocation
}

func (f *recordingFlusher) FlushBatch(ctx context.Context, batch []models.DriverLocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, batch)
	return nil
}

func (f *recordingFlusher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func (f *recordingFlusher) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func ping(driverID uuid.UUID) models.DriverLocation {
	return models.DriverLocation{
		DriverID:   driverID,
		Latitude:   12.9716,
		Longitude:  77.5946,
		RecordedAt: time.Now().UTC(),
	}
}

func TestBatcherFlushesAtBatchSize(t *testing.T) {
	flusher := &recordingFlusher{}
	b := NewBatcher(flusher, &config.LocationConfig{
		BatchSize:       5,
		BatchInterval:   time.Hour,
		BufferHighWater: 100,
	})
	defer b.Close()

	for i := 0; i < 5; i++ {
		b.Add(ping(uuid.New()))
	}

	require.Eventually(t, func() bool {
		return flusher.total() == 5
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, flusher.batchCount())
}

func TestBatcherFlushesOnInterval(t *testing.T) {
	flusher := &recordingFlusher{}
	b := NewBatcher(flusher, &config.LocationConfig{
		BatchSize:       100,
		BatchInterval:   50 * time.Millisecond,
		BufferHighWater: 1000,
	})
	defer b.Close()

	b.Add(ping(uuid.New()))
	b.Add(ping(uuid.New()))

	require.Eventually(t, func() bool {
		return flusher.total() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBatcherCloseDrainsBuffer(t *testing.T) {
	flusher := &recordingFlusher{}
	b := NewBatcher(flusher, &config.LocationConfig{
		BatchSize:       100,
		BatchInterval:   time.Hour,
		BufferHighWater: 1000,
	})

	b.Add(ping(uuid.New()))
	b.Add(ping(uuid.New()))
	b.Add(ping(uuid.New()))
	b.Close()

	assert.Equal(t, 3, flusher.total())

	// Adds after close are dropped.
	b.Add(ping(uuid.New()))
	assert.Equal(t, 3, flusher.total())
}

func TestBatcherDropsOldestForSameDriverAtHighWater(t *testing.T) {
	flusher := &recordingFlusher{}
	b := NewBatcher(flusher, &config.LocationConfig{
		BatchSize:       100,
		BatchInterval:   time.Hour,
		BufferHighWater: 3,
	})

	chatty := uuid.New()
	other := uuid.New()
	first := ping(chatty)
	first.Latitude = 1
	b.Add(first)
	b.Add(ping(other))
	b.Add(ping(uuid.New()))

	// Buffer is at the high-water mark; the chatty driver's oldest entry
	// goes, not anyone else's.
	newest := ping(chatty)
	newest.Latitude = 2
	b.Add(newest)
	b.Close()

	assert.Equal(t, 3, flusher.total())
	var chattyLats []float64
	for _, batch := range flusher.batches {
		for _, loc := range batch {
			if loc.DriverID == chatty {
				chattyLats = append(chattyLats, loc.Latitude)
			}
		}
	}
	assert.Equal(t, []float64{2}, chattyLats)
}
