package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKnownDistance(t *testing.T) {
	// Bandra (19.0596, 72.8295) to BKC (19.0760, 72.8777) is roughly 5.4 km
	d := Haversine(19.0596, 72.8295, 19.0760, 72.8777)
	assert.InDelta(t, 5.4, d, 0.2)
}

func TestHaversineZeroDistance(t *testing.T) {
	assert.Zero(t, Haversine(19.0596, 72.8295, 19.0596, 72.8295))
}

func TestHaversineSymmetry(t *testing.T) {
	a := Haversine(19.0596, 72.8295, 19.0760, 72.8777)
	b := Haversine(19.0760, 72.8777, 19.0596, 72.8295)
	assert.InDelta(t, a, b, 1e-9)
}

func TestRoundKm(t *testing.T) {
	assert.Equal(t, 5.43, RoundKm(5.4321))
	assert.Equal(t, 5.44, RoundKm(5.435))
}

func TestEstimateDurationMin(t *testing.T) {
	// 40 km at 40 km/h is one hour
	assert.Equal(t, 60, EstimateDurationMin(40))
	assert.Equal(t, 15, EstimateDurationMin(10))
}

func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidCoordinates(19.0596, 72.8295))
	assert.True(t, ValidCoordinates(-90, 180))

	assert.False(t, ValidCoordinates(90.1, 0))
	assert.False(t, ValidCoordinates(0, -180.5))
}
