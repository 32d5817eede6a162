package rides

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/database"
	"github.com/velocab/ridecore/pkg/models"
)

const rideColumns = `id, rider_id, driver_id, status, ride_type,
	pickup_latitude, pickup_longitude, pickup_address,
	dropoff_latitude, dropoff_longitude, dropoff_address,
	estimated_distance, estimated_duration, estimated_fare, surge_multiplier,
	payment_method_id, idempotency_key, search_attempts, rating, feedback,
	cancelled_by, cancellation_reason, cancellation_fee,
	scheduled_at, matched_at, cancelled_at, completed_at, created_at, updated_at`

const tripColumns = `id, ride_id, driver_id, status, start_otp, start_time,
	end_time, actual_distance, route_path, base_fare, per_km_rate, per_min_rate,
	distance_fare, time_fare, surge_amount, discount, final_fare, platform_fee,
	driver_earnings, created_at, updated_at`

// Repository persists rides, trips and ride events.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a rides repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanRide(row pgx.Row) (*models.Ride, error) {
	var r models.Ride
	err := row.Scan(
		&r.ID,
		&r.RiderID,
		&r.DriverID,
		&r.Status,
		&r.RideType,
		&r.PickupLatitude,
		&r.PickupLongitude,
		&r.PickupAddress,
		&r.DropoffLatitude,
		&r.DropoffLongitude,
		&r.DropoffAddress,
		&r.EstimatedDistance,
		&r.EstimatedDuration,
		&r.EstimatedFare,
		&r.SurgeMultiplier,
		&r.PaymentMethodID,
		&r.IdempotencyKey,
		&r.SearchAttempts,
		&r.Rating,
		&r.Feedback,
		&r.CancelledBy,
		&r.CancellationReason,
		&r.CancellationFee,
		&r.ScheduledAt,
		&r.MatchedAt,
		&r.CancelledAt,
		&r.CompletedAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanTrip(row pgx.Row) (*models.Trip, error) {
	var t models.Trip
	err := row.Scan(
		&t.ID,
		&t.RideID,
		&t.DriverID,
		&t.Status,
		&t.StartOTP,
		&t.StartTime,
		&t.EndTime,
		&t.ActualDistance,
		&t.RoutePath,
		&t.BaseFare,
		&t.PerKmRate,
		&t.PerMinRate,
		&t.DistanceFare,
		&t.TimeFare,
		&t.SurgeAmount,
		&t.Discount,
		&t.FinalFare,
		&t.PlatformFee,
		&t.DriverEarnings,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateRide inserts a new ride in SEARCHING.
func (r *Repository) CreateRide(ctx context.Context, ride *models.Ride) (*models.Ride, error) {
	query := `
		INSERT INTO rides (id, rider_id, status, ride_type,
			pickup_latitude, pickup_longitude, pickup_address,
			dropoff_latitude, dropoff_longitude, dropoff_address,
			estimated_distance, estimated_duration, estimated_fare,
			surge_multiplier, payment_method_id, idempotency_key, scheduled_at)
		VALUES ($1, $2, 'SEARCHING', $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16)
		RETURNING ` + rideColumns

	return scanRide(r.db.QueryRow(ctx, query,
		ride.ID,
		ride.RiderID,
		ride.RideType,
		ride.PickupLatitude,
		ride.PickupLongitude,
		ride.PickupAddress,
		ride.DropoffLatitude,
		ride.DropoffLongitude,
		ride.DropoffAddress,
		ride.EstimatedDistance,
		ride.EstimatedDuration,
		ride.EstimatedFare,
		ride.SurgeMultiplier,
		ride.PaymentMethodID,
		ride.IdempotencyKey,
		ride.ScheduledAt,
	))
}

// GetRideByID loads a ride.
func (r *Repository) GetRideByID(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.db.QueryRow(ctx, query, rideID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("ride not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ride: %w", err)
	}
	return ride, nil
}

// GetRideByIdempotencyKey loads the ride created under a client idempotency
// key. Returns (nil, nil) when none exists.
func (r *Repository) GetRideByIdempotencyKey(ctx context.Context, key string) (*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE idempotency_key = $1`

	ride, err := scanRide(r.db.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ride by idempotency key: %w", err)
	}
	return ride, nil
}

// ListByRider returns a rider's rides newest first.
func (r *Repository) ListByRider(ctx context.Context, riderID uuid.UUID, limit, offset int) ([]models.Ride, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM rides WHERE rider_id = $1`, riderID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count rides: %w", err)
	}

	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE rider_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, riderID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list rides: %w", err)
	}
	defer rows.Close()

	var out []models.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan ride: %w", err)
		}
		out = append(out, *ride)
	}
	return out, total, rows.Err()
}

// MatchRide atomically assigns a driver to a SEARCHING ride. Both guards
// run in one transaction: the ride must still be SEARCHING and the driver
// still AVAILABLE. Exactly one concurrent caller can win; the rest fail
// with Conflict.
func (r *Repository) MatchRide(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error) {
	var matched *models.Ride
	err := database.RetryableTransaction(ctx, r.db, func(tx pgx.Tx) error {
		ride, err := scanRide(tx.QueryRow(ctx, `
			UPDATE rides
			SET driver_id = $2, status = 'MATCHED', matched_at = now(), updated_at = now()
			WHERE id = $1 AND status = 'SEARCHING'
			RETURNING `+rideColumns, rideID, driverID))
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NewConflictError("ride is no longer searching")
		}
		if err != nil {
			return fmt.Errorf("failed to match ride: %w", err)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE drivers
			SET status = 'ON_RIDE', updated_at = now()
			WHERE id = $1 AND status = 'AVAILABLE'
		`, driverID)
		if err != nil {
			return fmt.Errorf("failed to assign driver: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return common.NewConflictError("driver is no longer available")
		}

		matched = ride
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matched, nil
}

// TransitionRide applies a guarded status move. Returns (nil, nil) when the
// ride was not in the expected source status.
func (r *Repository) TransitionRide(ctx context.Context, rideID uuid.UUID, from, to models.RideStatus) (*models.Ride, error) {
	query := `
		UPDATE rides
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + rideColumns

	ride, err := scanRide(r.db.QueryRow(ctx, query, rideID, from, to))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to transition ride: %w", err)
	}
	return ride, nil
}

// FailSearching moves a SEARCHING ride to FAILED after matching exhausts
// its attempts. Returns (nil, nil) when another actor moved the ride first.
func (r *Repository) FailSearching(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	return r.TransitionRide(ctx, rideID, models.RideStatusSearching, models.RideStatusFailed)
}

// IncrementSearchAttempts bumps the matching attempt counter.
func (r *Repository) IncrementSearchAttempts(ctx context.Context, rideID uuid.UUID) error {
	_, err := database.RetryableExec(ctx, r.db, `
		UPDATE rides SET search_attempts = search_attempts + 1, updated_at = now()
		WHERE id = $1
	`, rideID)
	return err
}

// CancelRide cancels a ride and, in the same transaction, restores an
// assigned driver to AVAILABLE and cancels a pending trip. The guard covers
// every cancellable status, so a race with matching resolves serially.
func (r *Repository) CancelRide(ctx context.Context, rideID uuid.UUID, by models.CancelActor, reason *string, fee *int64) (*models.Ride, error) {
	var cancelled *models.Ride
	err := database.RetryableTransaction(ctx, r.db, func(tx pgx.Tx) error {
		ride, err := scanRide(tx.QueryRow(ctx, `
			UPDATE rides
			SET status = 'CANCELLED',
			    cancelled_by = $2,
			    cancellation_reason = $3,
			    cancellation_fee = $4,
			    cancelled_at = now(),
			    updated_at = now()
			WHERE id = $1
			  AND status IN ('SEARCHING', 'MATCHED', 'DRIVER_ARRIVING', 'ARRIVED')
			RETURNING `+rideColumns, rideID, by, reason, fee))
		if errors.Is(err, pgx.ErrNoRows) {
			return common.NewConflictError("ride is not cancellable in its current state")
		}
		if err != nil {
			return fmt.Errorf("failed to cancel ride: %w", err)
		}

		if ride.DriverID != nil {
			_, err = tx.Exec(ctx, `
				UPDATE drivers SET status = 'AVAILABLE', updated_at = now()
				WHERE id = $1 AND status = 'ON_RIDE'
			`, *ride.DriverID)
			if err != nil {
				return fmt.Errorf("failed to restore driver: %w", err)
			}
		}

		_, err = tx.Exec(ctx, `
			UPDATE trips SET status = 'CANCELLED', updated_at = now()
			WHERE ride_id = $1 AND status = 'PENDING'
		`, rideID)
		if err != nil {
			return fmt.Errorf("failed to cancel trip: %w", err)
		}

		cancelled = ride
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// ArriveWithTrip moves DRIVER_ARRIVING → ARRIVED and upserts the trip row in
// one transaction, preserving an existing OTP on repeat arrivals. Returns
// (nil, nil, nil) when the ride was not DRIVER_ARRIVING.
func (r *Repository) ArriveWithTrip(ctx context.Context, rideID uuid.UUID, trip *models.Trip) (*models.Ride, *models.Trip, error) {
	var (
		ride    *models.Ride
		created *models.Trip
	)
	err := database.RetryableTransaction(ctx, r.db, func(tx pgx.Tx) error {
		updated, err := scanRide(tx.QueryRow(ctx, `
			UPDATE rides SET status = 'ARRIVED', updated_at = now()
			WHERE id = $1 AND status = 'DRIVER_ARRIVING'
			RETURNING `+rideColumns, rideID))
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		if err != nil {
			return fmt.Errorf("failed to mark ride arrived: %w", err)
		}

		row, err := scanTrip(tx.QueryRow(ctx, `
			INSERT INTO trips (id, ride_id, driver_id, status, start_otp,
				base_fare, per_km_rate, per_min_rate, discount)
			VALUES ($1, $2, $3, 'PENDING', $4, $5, $6, $7, $8)
			ON CONFLICT (ride_id) DO UPDATE SET updated_at = now()
			RETURNING `+tripColumns,
			trip.ID, trip.RideID, trip.DriverID, trip.StartOTP,
			trip.BaseFare, trip.PerKmRate, trip.PerMinRate, trip.Discount))
		if err != nil {
			return fmt.Errorf("failed to upsert trip: %w", err)
		}

		ride = updated
		created = row
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return ride, created, nil
}

// GetTripByID loads a trip.
func (r *Repository) GetTripByID(ctx context.Context, tripID uuid.UUID) (*models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.db.QueryRow(ctx, query, tripID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("trip not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return trip, nil
}

// StartTrip moves a PENDING trip to STARTED and its ride to IN_PROGRESS in
// one transaction. Returns (nil, nil, nil) when the trip already left
// PENDING.
func (r *Repository) StartTrip(ctx context.Context, tripID uuid.UUID) (*models.Trip, *models.Ride, error) {
	var (
		trip *models.Trip
		ride *models.Ride
	)
	err := database.RetryableTransaction(ctx, r.db, func(tx pgx.Tx) error {
		started, err := scanTrip(tx.QueryRow(ctx, `
			UPDATE trips SET status = 'STARTED', start_time = now(), updated_at = now()
			WHERE id = $1 AND status = 'PENDING'
			RETURNING `+tripColumns, tripID))
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		if err != nil {
			return fmt.Errorf("failed to start trip: %w", err)
		}

		updated, err := scanRide(tx.QueryRow(ctx, `
			UPDATE rides SET status = 'IN_PROGRESS', updated_at = now()
			WHERE id = $1 AND status = 'ARRIVED'
			RETURNING `+rideColumns, started.RideID))
		if err != nil {
			return fmt.Errorf("failed to move ride in progress: %w", err)
		}

		trip = started
		ride = updated
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return trip, ride, nil
}

// completeTripParams is everything the settlement transaction writes.
type completeTripParams struct {
	TripID         uuid.UUID
	RideID         uuid.UUID
	DriverID       uuid.UUID
	RiderID        uuid.UUID
	EndTime        time.Time
	ActualDistance float64
	RoutePath      []models.RoutePoint
	DistanceFare   float64
	TimeFare       float64
	SurgeAmount    float64
	Discount       float64
	FinalFare      float64
	PlatformFee    float64
	DriverEarnings float64
	Tax            float64
	BaseFare       float64
	Currency       string
}

// CompleteTrip finishes a STARTED trip: fare fields on the trip, ride to
// COMPLETED, driver back to AVAILABLE with the trip counted, rider ride
// count bumped, and the earning and receipt rows — all in one transaction.
// Returns (nil, nil, nil) when the trip already left STARTED.
func (r *Repository) CompleteTrip(ctx context.Context, p completeTripParams) (*models.Trip, *models.Ride, error) {
	var (
		trip *models.Trip
		ride *models.Ride
	)
	err := database.RetryableTransaction(ctx, r.db, func(tx pgx.Tx) error {
		completed, err := scanTrip(tx.QueryRow(ctx, `
			UPDATE trips
			SET status = 'COMPLETED',
			    end_time = $2,
			    actual_distance = $3,
			    route_path = $4,
			    distance_fare = $5,
			    time_fare = $6,
			    surge_amount = $7,
			    final_fare = $8,
			    platform_fee = $9,
			    driver_earnings = $10,
			    updated_at = now()
			WHERE id = $1 AND status = 'STARTED'
			RETURNING `+tripColumns,
			p.TripID, p.EndTime, p.ActualDistance, p.RoutePath,
			p.DistanceFare, p.TimeFare, p.SurgeAmount,
			p.FinalFare, p.PlatformFee, p.DriverEarnings))
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		if err != nil {
			return fmt.Errorf("failed to complete trip: %w", err)
		}

		updated, err := scanRide(tx.QueryRow(ctx, `
			UPDATE rides SET status = 'COMPLETED', completed_at = $2, updated_at = now()
			WHERE id = $1 AND status = 'IN_PROGRESS'
			RETURNING `+rideColumns, p.RideID, p.EndTime))
		if err != nil {
			return fmt.Errorf("failed to complete ride: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE drivers
			SET status = 'AVAILABLE', total_trips = total_trips + 1, updated_at = now()
			WHERE id = $1
		`, p.DriverID)
		if err != nil {
			return fmt.Errorf("failed to release driver: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE riders SET total_rides = total_rides + 1, updated_at = now()
			WHERE id = $1
		`, p.RiderID)
		if err != nil {
			return fmt.Errorf("failed to count rider trip: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO earnings (id, driver_id, trip_id, gross_fare, platform_fee, net_earning)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New(), p.DriverID, p.TripID, p.FinalFare, p.PlatformFee, p.DriverEarnings)
		if err != nil {
			return fmt.Errorf("failed to record earning: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO receipts (id, trip_id, rider_id, base_fare, distance_fare,
				time_fare, surge_amount, discount, tax, total, currency)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, uuid.New(), p.TripID, p.RiderID, p.BaseFare, p.DistanceFare,
			p.TimeFare, p.SurgeAmount, p.Discount, p.Tax, p.FinalFare, p.Currency)
		if err != nil {
			return fmt.Errorf("failed to issue receipt: %w", err)
		}

		trip = completed
		ride = updated
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return trip, ride, nil
}

// RateRide records a rider's rating on a completed ride and recomputes the
// driver's aggregate rating from all rated rides.
func (r *Repository) RateRide(ctx context.Context, rideID uuid.UUID, rating int, feedback *string) (*models.Ride, error) {
	var rated *models.Ride
	err := database.RetryableTransaction(ctx, r.db, func(tx pgx.Tx) error {
		ride, err := scanRide(tx.QueryRow(ctx, `
			UPDATE rides SET rating = $2, feedback = $3, updated_at = now()
			WHERE id = $1 AND status = 'COMPLETED' AND rating IS NULL
			RETURNING `+rideColumns, rideID, rating, feedback))
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		if err != nil {
			return fmt.Errorf("failed to rate ride: %w", err)
		}

		if ride.DriverID != nil {
			_, err = tx.Exec(ctx, `
				UPDATE drivers
				SET rating = (
					SELECT ROUND(AVG(rating)::numeric, 2)
					FROM rides
					WHERE driver_id = $1 AND rating IS NOT NULL
				),
				updated_at = now()
				WHERE id = $1
			`, *ride.DriverID)
			if err != nil {
				return fmt.Errorf("failed to update driver rating: %w", err)
			}
		}

		rated = ride
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rated, nil
}

// AppendEvent writes one audit record for a ride.
func (r *Repository) AppendEvent(ctx context.Context, rideID uuid.UUID, eventType string, payload map[string]interface{}) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO ride_events (id, ride_id, type, payload)
		VALUES ($1, $2, $3, $4)
	`, uuid.New(), rideID, eventType, payload)
	if err != nil {
		return fmt.Errorf("failed to append ride event: %w", err)
	}
	return nil
}

// ActiveRideIDForDriver returns the driver's current non-terminal ride, if
// any. Location fan-out uses it to route pings onto the ride topic.
func (r *Repository) ActiveRideIDForDriver(ctx context.Context, driverID uuid.UUID) (*uuid.UUID, error) {
	var rideID uuid.UUID
	err := r.db.QueryRow(ctx, `
		SELECT id FROM rides
		WHERE driver_id = $1
		  AND status IN ('MATCHED', 'DRIVER_ARRIVING', 'ARRIVED', 'IN_PROGRESS')
		ORDER BY created_at DESC
		LIMIT 1
	`, driverID).Scan(&rideID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve active ride: %w", err)
	}
	return &rideID, nil
}
