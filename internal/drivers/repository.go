package drivers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/models"
)

// Repository handles database operations for drivers
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new drivers repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const driverColumns = `id, name, phone, vehicle_model, vehicle_plate, vehicle_type,
	status, rating, acceptance_rate, total_trips, current_latitude, current_longitude,
	last_location_update, created_at, updated_at`

func scanDriver(row pgx.Row) (*models.Driver, error) {
	d := &models.Driver{}
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Phone,
		&d.VehicleModel,
		&d.VehiclePlate,
		&d.VehicleType,
		&d.Status,
		&d.Rating,
		&d.AcceptanceRate,
		&d.TotalTrips,
		&d.CurrentLatitude,
		&d.CurrentLongitude,
		&d.LastLocationUpdate,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// GetDriverByID retrieves a driver by ID
func (r *Repository) GetDriverByID(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`

	driver, err := scanDriver(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("driver not found", err)
		}
		return nil, fmt.Errorf("failed to get driver: %w", err)
	}
	return driver, nil
}

// UpdateStatus sets a driver's availability status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.DriverStatus) (*models.Driver, error) {
	query := `
		UPDATE drivers
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + driverColumns

	driver, err := scanDriver(r.db.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.NewNotFoundError("driver not found", err)
		}
		return nil, fmt.Errorf("failed to update driver status: %w", err)
	}
	return driver, nil
}

// GetEarningsSummary aggregates a driver's earnings over a period.
func (r *Repository) GetEarningsSummary(ctx context.Context, driverID uuid.UUID, from, to time.Time) (*models.EarningsSummary, error) {
	query := `
		SELECT COUNT(*),
			   COALESCE(SUM(gross_fare), 0),
			   COALESCE(SUM(platform_fee), 0),
			   COALESCE(SUM(net_earning), 0)
		FROM earnings
		WHERE driver_id = $1 AND created_at >= $2 AND created_at < $3
	`

	summary := &models.EarningsSummary{DriverID: driverID, From: from, To: to}
	err := r.db.QueryRow(ctx, query, driverID, from, to).Scan(
		&summary.TripCount,
		&summary.GrossFare,
		&summary.PlatformFees,
		&summary.NetEarnings,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate earnings: %w", err)
	}
	return summary, nil
}
