package locations

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocab/ridecore/internal/geoindex"
	"github.com/velocab/ridecore/pkg/bus"
	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/config"
	"github.com/velocab/ridecore/pkg/models"
)

type fakeDriverProvider struct {
	driver *models.Driver
	err    error
}

func (f *fakeDriverProvider) GetDriver(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	return f.driver, f.err
}

type fakeRideResolver struct {
	rideID *uuid.UUID
}

func (f *fakeRideResolver) ActiveRideIDForDriver(ctx context.Context, driverID uuid.UUID) (*uuid.UUID, error) {
	return f.rideID, nil
}

type ingestFixture struct {
	service *Service
	index   *geoindex.Index
	flusher *recordingFlusher
	batcher *Batcher
	bus     *bus.MemoryBus
}

func newIngestFixture(t *testing.T, driver *models.Driver) *ingestFixture {
	t.Helper()

	index := geoindex.New(geoindex.Options{
		Precision:     6,
		StaleAfter:    time.Minute,
		SweepInterval: time.Hour,
	})
	t.Cleanup(index.Close)

	flusher := &recordingFlusher{}
	batcher := NewBatcher(flusher, &config.LocationConfig{
		BatchSize:       100,
		BatchInterval:   time.Hour,
		BufferHighWater: 1000,
	})

	memBus := bus.NewMemoryBus()
	t.Cleanup(func() { _ = memBus.Close() })

	return &ingestFixture{
		service: NewService(index, batcher, memBus, &fakeDriverProvider{driver: driver}, &fakeRideResolver{}),
		index:   index,
		flusher: flusher,
		batcher: batcher,
		bus:     memBus,
	}
}

func availableDriver(id uuid.UUID) *models.Driver {
	return &models.Driver{
		ID:          id,
		Status:      models.DriverStatusAvailable,
		VehicleType: models.RideTypeStandard,
		Rating:      4.8,
	}
}

func TestRecordPingRejectsOutOfRangeCoordinates(t *testing.T) {
	driverID := uuid.New()
	f := newIngestFixture(t, availableDriver(driverID))

	err := f.service.RecordPing(context.Background(), driverID, &models.DriverLocationUpdate{
		Latitude:  95,
		Longitude: 77.5946,
	})

	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindInvalidInput))
	assert.Equal(t, 0, f.index.Size())

	f.batcher.Close()
	assert.Equal(t, 0, f.flusher.total())
}

func TestRecordPingRejectsNegativeSpeed(t *testing.T) {
	driverID := uuid.New()
	f := newIngestFixture(t, availableDriver(driverID))

	speed := -5.0
	err := f.service.RecordPing(context.Background(), driverID, &models.DriverLocationUpdate{
		Latitude:  12.9716,
		Longitude: 77.5946,
		Speed:     &speed,
	})

	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindInvalidInput))
	assert.Equal(t, 0, f.index.Size())

	f.batcher.Close()
	assert.Equal(t, 0, f.flusher.total())
}

func TestRecordPingIndexesAvailableDriver(t *testing.T) {
	driverID := uuid.New()
	f := newIngestFixture(t, availableDriver(driverID))

	err := f.service.RecordPing(context.Background(), driverID, &models.DriverLocationUpdate{
		Latitude:  12.9716,
		Longitude: 77.5946,
	})

	require.NoError(t, err)
	assert.Equal(t, 1, f.index.Size())
}

func TestRecordPingOfflineDriverPersistedNotIndexed(t *testing.T) {
	driverID := uuid.New()
	driver := availableDriver(driverID)
	driver.Status = models.DriverStatusOffline
	f := newIngestFixture(t, driver)

	var published atomic.Int32
	_, err := f.bus.Subscribe(bus.LocationTopic(driverID), func(topic string, payload []byte) {
		published.Add(1)
	})
	require.NoError(t, err)

	err = f.service.RecordPing(context.Background(), driverID, &models.DriverLocationUpdate{
		Latitude:  12.9716,
		Longitude: 77.5946,
	})

	require.NoError(t, err)
	assert.Equal(t, 0, f.index.Size())

	f.batcher.Close()
	assert.Equal(t, 1, f.flusher.total())

	require.Eventually(t, func() bool {
		return published.Load() == 1
	}, time.Second, 5*time.Millisecond)
}
