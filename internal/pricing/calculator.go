// Package pricing computes fares. The calculator is pure; configuration and
// surge lookup live in the service around it.
package pricing

import "math"

const (
	platformFeeRate = 0.20
	taxRate         = 0.18
)

// FareInputs are the raw fare parameters. Distances and durations are never
// rounded; only monetary outputs are.
type FareInputs struct {
	DistanceKm      float64
	DurationSeconds float64
	BaseFare        float64
	PerKmRate       float64
	PerMinRate      float64
	SurgeMultiplier float64
	Discount        float64
}

// FareBreakdown is the itemized fare. PlatformFee + DriverEarnings always
// equals FinalFare exactly, because earnings are derived after rounding.
type FareBreakdown struct {
	DistanceFare   float64 `json:"distance_fare"`
	TimeFare       float64 `json:"time_fare"`
	Subtotal       float64 `json:"subtotal"`
	SurgeAmount    float64 `json:"surge_amount"`
	FinalFare      float64 `json:"final_fare"`
	PlatformFee    float64 `json:"platform_fee"`
	DriverEarnings float64 `json:"driver_earnings"`
	Tax            float64 `json:"tax"`
}

// CalculateFare computes the itemized fare from the inputs.
func CalculateFare(in FareInputs) FareBreakdown {
	distanceFare := roundMoney(in.DistanceKm * in.PerKmRate)
	timeFare := roundMoney((in.DurationSeconds / 60.0) * in.PerMinRate)
	subtotal := roundMoney(in.BaseFare + distanceFare + timeFare)
	surgeAmount := roundMoney(subtotal * (in.SurgeMultiplier - 1))
	totalFare := roundMoney(subtotal + surgeAmount)
	finalFare := roundMoney(math.Max(0, totalFare-in.Discount))
	platformFee := roundMoney(finalFare * platformFeeRate)
	driverEarnings := roundMoney(finalFare - platformFee)
	tax := roundMoney(finalFare * taxRate)

	return FareBreakdown{
		DistanceFare:   distanceFare,
		TimeFare:       timeFare,
		Subtotal:       subtotal,
		SurgeAmount:    surgeAmount,
		FinalFare:      finalFare,
		PlatformFee:    platformFee,
		DriverEarnings: driverEarnings,
		Tax:            tax,
	}
}

// roundMoney rounds to two decimal places, half to even on ties.
func roundMoney(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
