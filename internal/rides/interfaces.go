package rides

import (
	"context"

	"github.com/google/uuid"

	"github.com/velocab/ridecore/internal/geoindex"
	"github.com/velocab/ridecore/internal/pricing"
	"github.com/velocab/ridecore/pkg/models"
)

// RepositoryInterface defines the persistence operations the engine needs.
type RepositoryInterface interface {
	CreateRide(ctx context.Context, ride *models.Ride) (*models.Ride, error)
	GetRideByID(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	GetRideByIdempotencyKey(ctx context.Context, key string) (*models.Ride, error)
	ListByRider(ctx context.Context, riderID uuid.UUID, limit, offset int) ([]models.Ride, int64, error)
	MatchRide(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error)
	TransitionRide(ctx context.Context, rideID uuid.UUID, from, to models.RideStatus) (*models.Ride, error)
	FailSearching(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	IncrementSearchAttempts(ctx context.Context, rideID uuid.UUID) error
	CancelRide(ctx context.Context, rideID uuid.UUID, by models.CancelActor, reason *string, fee *int64) (*models.Ride, error)
	ArriveWithTrip(ctx context.Context, rideID uuid.UUID, trip *models.Trip) (*models.Ride, *models.Trip, error)
	GetTripByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error)
	StartTrip(ctx context.Context, tripID uuid.UUID) (*models.Trip, *models.Ride, error)
	CompleteTrip(ctx context.Context, p completeTripParams) (*models.Trip, *models.Ride, error)
	RateRide(ctx context.Context, rideID uuid.UUID, rating int, feedback *string) (*models.Ride, error)
	AppendEvent(ctx context.Context, rideID uuid.UUID, eventType string, payload map[string]interface{}) error
	ActiveRideIDForDriver(ctx context.Context, driverID uuid.UUID) (*uuid.UUID, error)
}

// DriverControl is the slice of the driver service the engine uses for
// cache and geo index upkeep around in-transaction status flips.
type DriverControl interface {
	GetDriver(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
	ReseedIndex(ctx context.Context, driverID uuid.UUID)
}

// FareQuoter estimates fares at creation and resolves rate cards to freeze
// onto trips.
type FareQuoter interface {
	EstimateFare(ctx context.Context, pickup, dropoff models.LatLng, rideType models.RideType) (*pricing.Quote, error)
	RatesFor(ctx context.Context, rideType models.RideType) (pricing.Rates, error)
}

// GeoSearcher is the candidate lookup used by the matching loop.
type GeoSearcher interface {
	Query(lat, lng, radiusKm float64, limit int) []geoindex.Candidate
	Remove(driverID uuid.UUID)
}

// Notifier delivers ride lifecycle notifications.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, rideID *uuid.UUID, notifType, title, body string, data map[string]interface{}) error
}
