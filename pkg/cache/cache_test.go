package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/velocab/ridecore/pkg/redis"
)

type profile struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

func newMockManager(t *testing.T) (*Manager, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	return NewManager(redisclient.Wrap(client)), mock
}

func TestSetAndGetRoundTrip(t *testing.T) {
	m, mock := newMockManager(t)
	ctx := context.Background()

	mock.ExpectSet("driver:obj:1", `{"name":"Asha","rating":4.8}`, TTL.Short()).SetVal("OK")
	require.NoError(t, m.Set(ctx, Keys.Driver("1"), profile{Name: "Asha", Rating: 4.8}, TTL.Short()))

	mock.ExpectGet("driver:obj:1").SetVal(`{"name":"Asha","rating":4.8}`)
	var got profile
	require.NoError(t, m.Get(ctx, Keys.Driver("1"), &got))
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, 4.8, got.Rating)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetMissLoadsAndCaches(t *testing.T) {
	m, mock := newMockManager(t)
	ctx := context.Background()

	mock.ExpectGet("ride:obj:9").RedisNil()
	mock.ExpectSet("ride:obj:9", `{"name":"loaded","rating":0}`, TTL.Medium()).SetVal("OK")

	loads := 0
	var got profile
	err := m.GetOrSet(ctx, Keys.Ride("9"), TTL.Medium(), &got, func() (interface{}, error) {
		loads++
		return profile{Name: "loaded"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	assert.Equal(t, "loaded", got.Name)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrSetHitSkipsLoader(t *testing.T) {
	m, mock := newMockManager(t)
	ctx := context.Background()

	mock.ExpectGet("ride:obj:9").SetVal(`{"name":"cached","rating":5}`)

	var got profile
	err := m.GetOrSet(ctx, Keys.Ride("9"), TTL.Medium(), &got, func() (interface{}, error) {
		t.Fatal("loader must not run on a cache hit")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cached", got.Name)
}

func TestDeleteInvalidates(t *testing.T) {
	m, mock := newMockManager(t)

	mock.ExpectDel("ride:obj:9").SetVal(1)
	require.NoError(t, m.Delete(context.Background(), Keys.Ride("9")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNilManagerIsAlwaysMiss(t *testing.T) {
	var m *Manager
	ctx := context.Background()

	var got profile
	assert.ErrorIs(t, m.Get(ctx, "any", &got), ErrCacheDisabled)
	assert.NoError(t, m.Set(ctx, "any", got, time.Minute))
	assert.NoError(t, m.Delete(ctx, "any"))

	loads := 0
	err := m.GetOrSet(ctx, "any", time.Minute, &got, func() (interface{}, error) {
		loads++
		return profile{Name: "fresh"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	assert.Equal(t, "fresh", got.Name)
}

func TestKeyPatterns(t *testing.T) {
	assert.Equal(t, "ride:obj:a", Keys.Ride("a"))
	assert.Equal(t, "driver:obj:a", Keys.Driver("a"))
	assert.Equal(t, "driver:active_ride:a", Keys.ActiveRide("a"))
	assert.Equal(t, "trip:obj:a", Keys.Trip("a"))
}
