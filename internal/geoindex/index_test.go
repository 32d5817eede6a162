package geoindex

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velocab/ridecore/pkg/models"
)

// Bangalore city center; offsets below are roughly 1.1 km per 0.01 deg lat.
const (
	centerLat = 12.9716
	centerLng = 77.5946
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx := New(Options{StaleAfter: time.Minute, SweepInterval: time.Hour})
	t.Cleanup(idx.Close)
	return idx
}

func available(tier models.RideType, rating float64) Meta {
	return Meta{Tier: tier, Rating: rating, Status: models.DriverStatusAvailable}
}

func TestQueryReturnsNearestFirst(t *testing.T) {
	idx := newTestIndex(t)
	now := time.Now()

	near := uuid.New()
	far := uuid.New()
	idx.Add(near, centerLat+0.005, centerLng, now, available(models.RideTypeStandard, 4.5))
	idx.Add(far, centerLat+0.03, centerLng, now, available(models.RideTypeStandard, 4.9))

	got := idx.Query(centerLat, centerLng, 5, 10)

	require.Len(t, got, 2)
	assert.Equal(t, near, got[0].DriverID)
	assert.Equal(t, far, got[1].DriverID)
	assert.Less(t, got[0].DistanceKm, got[1].DistanceKm)
}

func TestQueryExcludesBeyondRadius(t *testing.T) {
	idx := newTestIndex(t)
	now := time.Now()

	inside := uuid.New()
	outside := uuid.New()
	idx.Add(inside, centerLat+0.01, centerLng, now, available(models.RideTypeStandard, 4.5))
	// ~11 km north, outside a 5 km radius.
	idx.Add(outside, centerLat+0.1, centerLng, now, available(models.RideTypeStandard, 4.5))

	got := idx.Query(centerLat, centerLng, 5, 10)

	require.Len(t, got, 1)
	assert.Equal(t, inside, got[0].DriverID)
}

func TestQuerySkipsUnavailableDrivers(t *testing.T) {
	idx := newTestIndex(t)
	now := time.Now()

	busy := uuid.New()
	idx.Add(busy, centerLat, centerLng, now, Meta{
		Tier:   models.RideTypeStandard,
		Rating: 5,
		Status: models.DriverStatusOnRide,
	})

	assert.Empty(t, idx.Query(centerLat, centerLng, 5, 10))
	assert.Equal(t, 1, idx.Size())
}

func TestQueryHonorsLimit(t *testing.T) {
	idx := newTestIndex(t)
	now := time.Now()

	for i := 0; i < 8; i++ {
		idx.Add(uuid.New(), centerLat+float64(i)*0.001, centerLng, now, available(models.RideTypeStandard, 4.0))
	}

	got := idx.Query(centerLat, centerLng, 5, 3)
	assert.Len(t, got, 3)
}

func TestAddIgnoresOlderTimestamp(t *testing.T) {
	idx := newTestIndex(t)
	driverID := uuid.New()
	now := time.Now()

	idx.Add(driverID, centerLat, centerLng, now, available(models.RideTypeStandard, 4.5))
	idx.Add(driverID, centerLat+0.05, centerLng, now.Add(-time.Minute), available(models.RideTypeStandard, 4.5))

	lat, _, ok := idx.Position(driverID)
	require.True(t, ok)
	assert.Equal(t, centerLat, lat)
}

func TestAddMovesDriverBetweenCells(t *testing.T) {
	idx := newTestIndex(t)
	driverID := uuid.New()
	now := time.Now()

	idx.Add(driverID, centerLat, centerLng, now, available(models.RideTypeStandard, 4.5))
	// A large move lands in a different geohash cell.
	idx.Add(driverID, centerLat+0.5, centerLng+0.5, now.Add(time.Second), available(models.RideTypeStandard, 4.5))

	assert.Equal(t, 1, idx.Size())
	assert.Empty(t, idx.Query(centerLat, centerLng, 2, 10))

	got := idx.Query(centerLat+0.5, centerLng+0.5, 2, 10)
	require.Len(t, got, 1)
	assert.Equal(t, driverID, got[0].DriverID)
}

func TestRemoveDropsDriver(t *testing.T) {
	idx := newTestIndex(t)
	driverID := uuid.New()

	idx.Add(driverID, centerLat, centerLng, time.Now(), available(models.RideTypeStandard, 4.5))
	idx.Remove(driverID)
	idx.Remove(driverID) // unknown driver is a no-op

	assert.Equal(t, 0, idx.Size())
	assert.Empty(t, idx.Query(centerLat, centerLng, 5, 10))
}

func TestEvictStaleRemovesOldEntries(t *testing.T) {
	idx := newTestIndex(t)
	now := time.Now()

	fresh := uuid.New()
	stale := uuid.New()
	idx.Add(fresh, centerLat, centerLng, now, available(models.RideTypeStandard, 4.5))
	idx.Add(stale, centerLat+0.01, centerLng, now.Add(-2*time.Minute), available(models.RideTypeStandard, 4.5))

	idx.evictStale(now)

	assert.Equal(t, 1, idx.Size())
	_, _, ok := idx.Position(stale)
	assert.False(t, ok)
}
