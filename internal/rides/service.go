package rides

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/bus"
	"github.com/velocab/ridecore/pkg/cache"
	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/config"
	"github.com/velocab/ridecore/pkg/database"
	"github.com/velocab/ridecore/pkg/locks"
	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/metrics"
	"github.com/velocab/ridecore/pkg/models"
	"github.com/velocab/ridecore/pkg/validation"
	"github.com/velocab/ridecore/internal/pricing"
)

const cancellationFeeRate = 0.10

// Service is the ride lifecycle engine.
type Service struct {
	repo     RepositoryInterface
	drivers  DriverControl
	pricing  FareQuoter
	notifier Notifier
	bus      bus.Bus
	cache    *cache.Manager
	locker   locks.Locker
	geo      GeoSearcher
	cfg      *config.MatchingConfig
}

// NewService creates the ride engine. notifier and cache may be nil.
func NewService(
	repo RepositoryInterface,
	drivers DriverControl,
	fares FareQuoter,
	notifier Notifier,
	b bus.Bus,
	cacheManager *cache.Manager,
	locker locks.Locker,
	geo GeoSearcher,
	cfg *config.MatchingConfig,
) *Service {
	return &Service{
		repo:     repo,
		drivers:  drivers,
		pricing:  fares,
		notifier: notifier,
		bus:      b,
		cache:    cacheManager,
		locker:   locker,
		geo:      geo,
		cfg:      cfg,
	}
}

// CreateRide creates a ride in SEARCHING and kicks off the detached
// matching loop. Re-submissions under the same idempotency key return the
// original ride.
func (s *Service) CreateRide(ctx context.Context, req models.CreateRideRequest) (*models.Ride, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}

	if existing, err := s.repo.GetRideByIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	quote, err := s.pricing.EstimateFare(ctx, req.Pickup, req.Dropoff, req.RideType)
	if err != nil {
		return nil, err
	}

	ride := &models.Ride{
		ID:                uuid.New(),
		RiderID:           req.RiderID,
		RideType:          req.RideType,
		PickupLatitude:    req.Pickup.Latitude,
		PickupLongitude:   req.Pickup.Longitude,
		PickupAddress:     req.Pickup.Address,
		DropoffLatitude:   req.Dropoff.Latitude,
		DropoffLongitude:  req.Dropoff.Longitude,
		DropoffAddress:    req.Dropoff.Address,
		EstimatedDistance: quote.DistanceKm,
		EstimatedDuration: quote.DurationMin,
		EstimatedFare:     quote.EstimatedFare,
		SurgeMultiplier:   quote.SurgeMultiplier,
		PaymentMethodID:   req.PaymentMethodID,
		IdempotencyKey:    &req.IdempotencyKey,
		ScheduledAt:       req.ScheduledAt,
	}

	created, err := s.repo.CreateRide(ctx, ride)
	if err != nil {
		if database.IsUniqueViolation(err, "idx_rides_idempotency_key") {
			// A concurrent submission with the same key won the insert.
			replay, lookupErr := s.repo.GetRideByIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr == nil && replay != nil {
				return replay, nil
			}
		}
		return nil, fmt.Errorf("failed to create ride: %w", err)
	}

	metrics.RideTransitionsTotal.WithLabelValues("NONE", string(models.RideStatusSearching)).Inc()
	s.appendEvent(ctx, created.ID, models.EventRideCreated, map[string]interface{}{
		"rider_id":  created.RiderID.String(),
		"ride_type": string(created.RideType),
	})
	s.publishStatus(ctx, created, models.EventRideCreated)
	s.notify(ctx, created.RiderID, created.ID, models.NotificationRideCreated,
		"Looking for a driver", "We're finding you a nearby driver.")

	// Future-scheduled rides are persisted but not dispatched for matching.
	if created.ScheduledAt == nil || !created.ScheduledAt.After(time.Now()) {
		s.startMatching(created)
	}
	return created, nil
}

// GetRide returns a ride through the read-through cache.
func (s *Service) GetRide(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	if s.cache == nil {
		return s.repo.GetRideByID(ctx, rideID)
	}

	var ride models.Ride
	err := s.cache.GetOrSet(ctx, cache.Keys.Ride(rideID.String()), cache.TTL.Short(), &ride, func() (interface{}, error) {
		return s.repo.GetRideByID(ctx, rideID)
	})
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

// ListRiderHistory returns a rider's rides, newest first.
func (s *Service) ListRiderHistory(ctx context.Context, riderID uuid.UUID, limit, offset int) ([]models.Ride, int64, error) {
	return s.repo.ListByRider(ctx, riderID, limit, offset)
}

// CancelRide cancels a non-terminal ride. In-progress trips must be ended,
// not cancelled. The matching lock serializes a cancel racing the matcher:
// whichever wins, the later actor observes the earlier state.
func (s *Service) CancelRide(ctx context.Context, rideID uuid.UUID, req models.CancelRideRequest) (*models.Ride, error) {
	var cancelled *models.Ride
	var priorStatus models.RideStatus
	err := locks.WithLock(ctx, s.locker, locks.MatchingLockName(rideID.String()), s.cfg.LockTTL, func(ctx context.Context) error {
		ride, err := s.repo.GetRideByID(ctx, rideID)
		if err != nil {
			return err
		}
		priorStatus = ride.Status
		if ride.Status == models.RideStatusInProgress {
			return common.NewValidationError("ride is in progress; end the trip instead")
		}
		if ride.Status.Terminal() {
			return common.NewConflictError("ride is already finished")
		}

		// Fee applies once a driver was committed. Metadata only; nothing
		// is charged against it.
		var fee *int64
		switch ride.Status {
		case models.RideStatusMatched, models.RideStatusDriverArriving, models.RideStatusArrived:
			v := int64(math.Round(ride.EstimatedFare * cancellationFeeRate))
			fee = &v
		}

		cancelled, err = s.repo.CancelRide(ctx, rideID, req.CancelledBy, req.Reason, fee)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, cancelled, priorStatus, models.EventRideCancelled, map[string]interface{}{
		"cancelled_by": string(req.CancelledBy),
	})
	if cancelled.DriverID != nil {
		s.drivers.ReseedIndex(ctx, *cancelled.DriverID)
		s.invalidateActiveRide(ctx, *cancelled.DriverID)
		s.notify(ctx, *cancelled.DriverID, cancelled.ID, models.NotificationRideCancelled,
			"Ride cancelled", "The ride was cancelled.")
	}
	s.notify(ctx, cancelled.RiderID, cancelled.ID, models.NotificationRideCancelled,
		"Ride cancelled", "Your ride was cancelled.")

	return cancelled, nil
}

// AcceptRide is a driver's direct claim on a searching ride. Concurrent
// accepts resolve to a single winner; losers fail with Conflict.
func (s *Service) AcceptRide(ctx context.Context, rideID, driverID uuid.UUID) (*models.AcceptRideResponse, error) {
	if _, err := s.repo.GetRideByID(ctx, rideID); err != nil {
		return nil, err
	}
	if _, err := s.drivers.GetDriver(ctx, driverID); err != nil {
		return nil, err
	}

	if err := s.tryMatch(ctx, rideID, driverID); err != nil {
		return nil, err
	}

	return &models.AcceptRideResponse{
		RideID:  rideID,
		Message: "ride accepted",
	}, nil
}

// MarkArriving records that the matched driver is en route to pickup.
func (s *Service) MarkArriving(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error) {
	ride, err := s.assignedRide(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}
	if _, ok := canTransition(ride.Status, EventEnRoute); !ok {
		return nil, common.NewValidationError("ride is not awaiting pickup")
	}

	updated, err := s.repo.TransitionRide(ctx, rideID, models.RideStatusMatched, models.RideStatusDriverArriving)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, common.NewConflictError("ride state changed; refresh and retry")
	}

	s.afterTransition(ctx, updated, models.RideStatusMatched, models.EventDriverArriving, nil)
	s.notify(ctx, updated.RiderID, updated.ID, models.NotificationDriverArriving,
		"Driver on the way", "Your driver is heading to the pickup point.")
	return updated, nil
}

// MarkArrived records pickup arrival: the trip row is created with frozen
// pricing inputs and a start OTP the rider must read back to the driver.
func (s *Service) MarkArrived(ctx context.Context, rideID, driverID uuid.UUID) (*models.MarkArrivedResponse, error) {
	ride, err := s.assignedRide(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}
	if _, ok := canTransition(ride.Status, EventAtPickup); !ok {
		return nil, common.NewValidationError("ride is not in the arriving state")
	}

	rates, err := s.pricing.RatesFor(ctx, ride.RideType)
	if err != nil {
		return nil, err
	}

	otp, err := generateOTP()
	if err != nil {
		return nil, common.NewInternalError("failed to generate trip OTP", err)
	}

	trip := &models.Trip{
		ID:         uuid.New(),
		RideID:     ride.ID,
		DriverID:   driverID,
		StartOTP:   otp,
		BaseFare:   rates.BaseFare,
		PerKmRate:  rates.PerKmRate,
		PerMinRate: rates.PerMinRate,
	}

	updated, createdTrip, err := s.repo.ArriveWithTrip(ctx, rideID, trip)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, common.NewConflictError("ride state changed; refresh and retry")
	}

	s.afterTransition(ctx, updated, models.RideStatusDriverArriving, models.EventDriverArrived, map[string]interface{}{
		"trip_id": createdTrip.ID.String(),
	})
	s.notify(ctx, updated.RiderID, updated.ID, models.NotificationDriverArrived,
		"Driver has arrived",
		fmt.Sprintf("Share OTP %s with your driver to start the trip.", createdTrip.StartOTP))

	return &models.MarkArrivedResponse{
		TripID:   createdTrip.ID,
		StartOTP: createdTrip.StartOTP,
	}, nil
}

// StartTrip begins the trip after the OTP gate. A wrong OTP mutates nothing.
func (s *Service) StartTrip(ctx context.Context, tripID uuid.UUID, req models.StartTripRequest) (*models.Trip, error) {
	trip, err := s.repo.GetTripByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusPending {
		return nil, common.NewValidationError("trip is not awaiting start")
	}
	if trip.StartOTP != req.StartOTP {
		return nil, common.NewValidationError("incorrect OTP")
	}

	started, ride, err := s.repo.StartTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if started == nil {
		return nil, common.NewConflictError("trip state changed; refresh and retry")
	}

	s.afterTransition(ctx, ride, models.RideStatusArrived, models.EventTripStarted, map[string]interface{}{
		"trip_id": started.ID.String(),
	})
	s.notify(ctx, ride.RiderID, ride.ID, models.NotificationTripStarted,
		"Trip started", "Enjoy your ride.")
	return started, nil
}

// EndTrip completes the trip: fare from the frozen trip rates and the
// ride's captured surge, then one transaction settling trip, ride, driver,
// rider, earning and receipt.
func (s *Service) EndTrip(ctx context.Context, tripID uuid.UUID, req models.EndTripRequest) (*models.Trip, error) {
	trip, err := s.repo.GetTripByID(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusStarted {
		return nil, common.NewValidationError("trip is not in progress")
	}
	if trip.StartTime == nil {
		return nil, common.NewInternalError("started trip has no start time", nil)
	}

	ride, err := s.repo.GetRideByID(ctx, trip.RideID)
	if err != nil {
		return nil, err
	}

	rates, err := s.pricing.RatesFor(ctx, ride.RideType)
	if err != nil {
		return nil, err
	}

	endTime := time.Now().UTC()
	fare := pricing.CalculateFare(pricing.FareInputs{
		DistanceKm:      req.ActualDistance,
		DurationSeconds: endTime.Sub(*trip.StartTime).Seconds(),
		BaseFare:        trip.BaseFare,
		PerKmRate:       trip.PerKmRate,
		PerMinRate:      trip.PerMinRate,
		SurgeMultiplier: ride.SurgeMultiplier,
		Discount:        trip.Discount,
	})

	completed, updatedRide, err := s.repo.CompleteTrip(ctx, completeTripParams{
		TripID:         trip.ID,
		RideID:         ride.ID,
		DriverID:       trip.DriverID,
		RiderID:        ride.RiderID,
		EndTime:        endTime,
		ActualDistance: req.ActualDistance,
		RoutePath:      req.RoutePath,
		DistanceFare:   fare.DistanceFare,
		TimeFare:       fare.TimeFare,
		SurgeAmount:    fare.SurgeAmount,
		Discount:       trip.Discount,
		FinalFare:      fare.FinalFare,
		PlatformFee:    fare.PlatformFee,
		DriverEarnings: fare.DriverEarnings,
		Tax:            fare.Tax,
		BaseFare:       trip.BaseFare,
		Currency:       rates.Currency,
	})
	if err != nil {
		return nil, err
	}
	if completed == nil {
		return nil, common.NewConflictError("trip state changed; refresh and retry")
	}

	s.afterTransition(ctx, updatedRide, models.RideStatusInProgress, models.EventTripCompleted, map[string]interface{}{
		"trip_id":    completed.ID.String(),
		"final_fare": fare.FinalFare,
	})
	s.drivers.ReseedIndex(ctx, trip.DriverID)
	s.invalidateActiveRide(ctx, trip.DriverID)
	s.invalidateTrip(ctx, trip.ID)

	s.notify(ctx, updatedRide.RiderID, updatedRide.ID, models.NotificationTripCompleted,
		"Trip completed",
		fmt.Sprintf("Your fare is %.2f %s.", fare.FinalFare, rates.Currency))
	s.notify(ctx, trip.DriverID, updatedRide.ID, models.NotificationTripCompleted,
		"Trip completed",
		fmt.Sprintf("You earned %.2f %s on this trip.", fare.DriverEarnings, rates.Currency))

	return completed, nil
}

// RateRide records a 1..5 rating on a completed ride.
func (s *Service) RateRide(ctx context.Context, rideID uuid.UUID, req models.RideRatingRequest) (*models.Ride, error) {
	ride, err := s.repo.GetRideByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != models.RideStatusCompleted {
		return nil, common.NewValidationError("only completed rides can be rated")
	}
	if ride.Rating != nil {
		return nil, common.NewConflictError("ride already rated")
	}

	rated, err := s.repo.RateRide(ctx, rideID, req.Rating, req.Feedback)
	if err != nil {
		return nil, err
	}
	if rated == nil {
		return nil, common.NewConflictError("ride already rated")
	}

	s.invalidateRide(ctx, rideID)
	if rated.DriverID != nil {
		s.invalidateDriver(ctx, *rated.DriverID)
	}
	return rated, nil
}

// ActiveRideIDForDriver resolves a driver's current non-terminal ride. The
// location pipeline calls this per ping, so hits are cached.
func (s *Service) ActiveRideIDForDriver(ctx context.Context, driverID uuid.UUID) (*uuid.UUID, error) {
	if s.cache != nil {
		var cached uuid.UUID
		if err := s.cache.Get(ctx, cache.Keys.ActiveRide(driverID.String()), &cached); err == nil {
			return &cached, nil
		}
	}

	rideID, err := s.repo.ActiveRideIDForDriver(ctx, driverID)
	if err != nil || rideID == nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.Keys.ActiveRide(driverID.String()), *rideID, cache.TTL.Short()); err != nil {
			logger.WarnContext(ctx, "active ride cache write failed", zap.Error(err))
		}
	}
	return rideID, nil
}

// tryMatch assigns a driver to a ride under the per-ride matching lock.
// Used by the driver accept endpoint and by every matcher candidate walk.
func (s *Service) tryMatch(ctx context.Context, rideID, driverID uuid.UUID) error {
	return locks.WithLock(ctx, s.locker, locks.MatchingLockName(rideID.String()), s.cfg.LockTTL, func(ctx context.Context) error {
		matched, err := s.repo.MatchRide(ctx, rideID, driverID)
		if err != nil {
			return err
		}

		s.geo.Remove(driverID)
		s.invalidateDriver(ctx, driverID)
		if s.cache != nil {
			if err := s.cache.Set(ctx, cache.Keys.ActiveRide(driverID.String()), rideID, cache.TTL.Short()); err != nil {
				logger.WarnContext(ctx, "active ride cache write failed", zap.Error(err))
			}
		}

		s.afterTransition(ctx, matched, models.RideStatusSearching, models.EventDriverMatched, map[string]interface{}{
			"driver_id": driverID.String(),
		})
		s.notify(ctx, matched.RiderID, matched.ID, models.NotificationDriverMatched,
			"Driver found", "A driver has accepted your ride.")
		return nil
	})
}

// assignedRide loads a ride and checks the calling driver is its driver.
func (s *Service) assignedRide(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error) {
	ride, err := s.repo.GetRideByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return nil, common.NewValidationError("driver is not assigned to this ride")
	}
	return ride, nil
}

// afterTransition runs the bookkeeping every applied transition shares:
// audit event, metrics, cache invalidation, bus publish.
func (s *Service) afterTransition(ctx context.Context, ride *models.Ride, from models.RideStatus, eventType string, payload map[string]interface{}) {
	metrics.RideTransitionsTotal.WithLabelValues(string(from), string(ride.Status)).Inc()
	s.appendEvent(ctx, ride.ID, eventType, payload)
	s.invalidateRide(ctx, ride.ID)
	s.publishStatus(ctx, ride, eventType)
}

func (s *Service) appendEvent(ctx context.Context, rideID uuid.UUID, eventType string, payload map[string]interface{}) {
	if err := s.repo.AppendEvent(ctx, rideID, eventType, payload); err != nil {
		logger.WarnContext(ctx, "ride event append failed",
			zap.String("ride_id", rideID.String()),
			zap.String("event", eventType),
			zap.Error(err),
		)
	}
}

func (s *Service) publishStatus(ctx context.Context, ride *models.Ride, eventType string) {
	payload := map[string]interface{}{
		"type":   "status_update",
		"event":  eventType,
		"ride":   ride,
		"status": ride.Status,
	}
	if err := s.bus.Publish(ctx, bus.RideTopic(ride.ID), payload); err != nil {
		logger.WarnContext(ctx, "ride status publish failed",
			zap.String("ride_id", ride.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) invalidateRide(ctx context.Context, rideID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.Keys.Ride(rideID.String())); err != nil {
		logger.WarnContext(ctx, "ride cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) invalidateTrip(ctx context.Context, tripID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.Keys.Trip(tripID.String())); err != nil {
		logger.WarnContext(ctx, "trip cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) invalidateDriver(ctx context.Context, driverID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.Keys.Driver(driverID.String())); err != nil {
		logger.WarnContext(ctx, "driver cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) invalidateActiveRide(ctx context.Context, driverID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.Keys.ActiveRide(driverID.String())); err != nil {
		logger.WarnContext(ctx, "active ride cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, userID, rideID uuid.UUID, notifType, title, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, &rideID, notifType, title, body, nil); err != nil {
		logger.WarnContext(ctx, "ride notification failed",
			zap.String("ride_id", rideID.String()),
			zap.String("type", notifType),
			zap.Error(err),
		)
	}
}

// generateOTP mints a 4-digit trip start code.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}
