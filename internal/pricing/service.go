package pricing

import (
	"context"

	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/config"
	"github.com/velocab/ridecore/pkg/geo"
	"github.com/velocab/ridecore/pkg/models"
)

// Rates are the pricing inputs frozen onto a trip at creation.
type Rates struct {
	BaseFare   float64
	PerKmRate  float64
	PerMinRate float64
	Currency   string
}

// Quote is a full estimate for a prospective ride.
type Quote struct {
	DistanceKm      float64
	DurationMin     int
	SurgeMultiplier float64
	EstimatedFare   float64
	Rates           Rates
}

// Service resolves rate cards and surge, and quotes fares.
type Service struct {
	repo     *Repository
	surge    *surgeResolver
	defaults *config.PricingConfig
}

// NewService creates a pricing service.
func NewService(repo *Repository, defaults *config.PricingConfig) *Service {
	return &Service{
		repo:     repo,
		surge:    newSurgeResolver(repo),
		defaults: defaults,
	}
}

// RatesFor returns the active rate card for a ride type, falling back to
// configured defaults when no row is active.
func (s *Service) RatesFor(ctx context.Context, rideType models.RideType) (Rates, error) {
	cfg, err := s.repo.GetActiveConfig(ctx, s.defaults.Region, rideType)
	if err != nil {
		return Rates{}, err
	}
	if cfg == nil {
		return Rates{
			BaseFare:   s.defaults.BaseFare,
			PerKmRate:  s.defaults.PerKmRate,
			PerMinRate: s.defaults.PerMinRate,
			Currency:   s.defaults.Currency,
		}, nil
	}
	return Rates{
		BaseFare:   cfg.BaseFare,
		PerKmRate:  cfg.PerKmRate,
		PerMinRate: cfg.PerMinRate,
		Currency:   cfg.Currency,
	}, nil
}

// SurgeMultiplier resolves the current surge for a pickup point.
func (s *Service) SurgeMultiplier(ctx context.Context, lat, lng float64) float64 {
	return s.surge.Multiplier(ctx, lat, lng)
}

// EstimateFare quotes a prospective ride from straight-line distance and an
// average-speed duration estimate.
func (s *Service) EstimateFare(ctx context.Context, pickup, dropoff models.LatLng, rideType models.RideType) (*Quote, error) {
	if !geo.ValidCoordinates(pickup.Latitude, pickup.Longitude) ||
		!geo.ValidCoordinates(dropoff.Latitude, dropoff.Longitude) {
		return nil, common.NewInvalidInputError("coordinates out of range", nil)
	}
	if !models.ValidRideType(rideType) {
		return nil, common.NewInvalidInputError("unknown ride type", nil)
	}

	rates, err := s.RatesFor(ctx, rideType)
	if err != nil {
		return nil, err
	}

	distanceKm := geo.RoundKm(geo.Haversine(pickup.Latitude, pickup.Longitude, dropoff.Latitude, dropoff.Longitude))
	durationMin := geo.EstimateDurationMin(distanceKm)
	surge := s.SurgeMultiplier(ctx, pickup.Latitude, pickup.Longitude)

	fare := CalculateFare(FareInputs{
		DistanceKm:      distanceKm,
		DurationSeconds: float64(durationMin) * 60,
		BaseFare:        rates.BaseFare,
		PerKmRate:       rates.PerKmRate,
		PerMinRate:      rates.PerMinRate,
		SurgeMultiplier: surge,
	})

	return &Quote{
		DistanceKm:      distanceKm,
		DurationMin:     durationMin,
		SurgeMultiplier: surge,
		EstimatedFare:   fare.FinalFare,
		Rates:           rates,
	}, nil
}
