package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateFareStandardSurgeRide(t *testing.T) {
	got := CalculateFare(FareInputs{
		DistanceKm:      8.7,
		DurationSeconds: 1200,
		BaseFare:        50,
		PerKmRate:       12,
		PerMinRate:      2,
		SurgeMultiplier: 1.2,
	})

	assert.Equal(t, 104.40, got.DistanceFare)
	assert.Equal(t, 40.00, got.TimeFare)
	assert.Equal(t, 194.40, got.Subtotal)
	assert.Equal(t, 38.88, got.SurgeAmount)
	assert.Equal(t, 233.28, got.FinalFare)
	assert.Equal(t, 46.66, got.PlatformFee)
	assert.Equal(t, 186.62, got.DriverEarnings)
}

func TestCalculateFareNoSurge(t *testing.T) {
	got := CalculateFare(FareInputs{
		DistanceKm:      5,
		DurationSeconds: 600,
		BaseFare:        50,
		PerKmRate:       12,
		PerMinRate:      2,
		SurgeMultiplier: 1.0,
	})

	assert.Equal(t, 0.0, got.SurgeAmount)
	assert.Equal(t, got.Subtotal, got.FinalFare)
}

func TestCalculateFareEarningsSplitIsExact(t *testing.T) {
	inputs := []FareInputs{
		{DistanceKm: 3.33, DurationSeconds: 437, BaseFare: 50, PerKmRate: 12, PerMinRate: 2, SurgeMultiplier: 1.0},
		{DistanceKm: 12.01, DurationSeconds: 1801, BaseFare: 50, PerKmRate: 12, PerMinRate: 2, SurgeMultiplier: 1.7},
		{DistanceKm: 0.4, DurationSeconds: 90, BaseFare: 35, PerKmRate: 9.5, PerMinRate: 1.5, SurgeMultiplier: 2.5},
	}

	for _, in := range inputs {
		got := CalculateFare(in)
		// Earnings are derived from the rounded fee, so the split never
		// loses a paisa.
		assert.InDelta(t, got.FinalFare, got.PlatformFee+got.DriverEarnings, 1e-9)
	}
}

func TestCalculateFareDiscountFloorsAtZero(t *testing.T) {
	got := CalculateFare(FareInputs{
		DistanceKm:      1,
		DurationSeconds: 60,
		BaseFare:        30,
		PerKmRate:       10,
		PerMinRate:      2,
		SurgeMultiplier: 1.0,
		Discount:        500,
	})

	assert.Equal(t, 0.0, got.FinalFare)
	assert.Equal(t, 0.0, got.PlatformFee)
	assert.Equal(t, 0.0, got.DriverEarnings)
}

func TestRoundMoneyHalfToEven(t *testing.T) {
	assert.Equal(t, 0.12, roundMoney(0.125))
	assert.Equal(t, 0.38, roundMoney(0.375))
	assert.Equal(t, 104.40, roundMoney(104.4000000001))
}
