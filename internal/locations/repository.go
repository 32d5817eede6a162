package locations

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velocab/ridecore/pkg/models"
)

// Repository persists driver position history and keeps the drivers table's
// denormalized position columns current.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a location repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FlushBatch writes a batch in one transaction: a multi-row insert into the
// history table and a single update of each driver's latest position. The
// batch preserves per-driver arrival order, so the last entry per driver is
// the freshest.
func (r *Repository) FlushBatch(ctx context.Context, batch []models.DriverLocation) error {
	if len(batch) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := insertLocations(ctx, tx, batch); err != nil {
			return err
		}
		return updateDriverPositions(ctx, tx, latestPerDriver(batch))
	})
}

func insertLocations(ctx context.Context, tx pgx.Tx, batch []models.DriverLocation) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO driver_locations (driver_id, latitude, longitude, heading, speed, accuracy, recorded_at) VALUES `)

	args := make([]interface{}, 0, len(batch)*7)
	for i, loc := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 7
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args, loc.DriverID, loc.Latitude, loc.Longitude,
			loc.Heading, loc.Speed, loc.Accuracy, loc.RecordedAt)
	}

	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert location batch: %w", err)
	}
	return nil
}

func updateDriverPositions(ctx context.Context, tx pgx.Tx, latest []models.DriverLocation) error {
	var sb strings.Builder
	sb.WriteString(`UPDATE drivers SET
		current_latitude = v.latitude,
		current_longitude = v.longitude,
		last_location_update = v.recorded_at,
		updated_at = now()
	FROM (VALUES `)

	args := make([]interface{}, 0, len(latest)*4)
	for i, loc := range latest {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 4
		fmt.Fprintf(&sb, "($%d::uuid, $%d::double precision, $%d::double precision, $%d::timestamptz)",
			base+1, base+2, base+3, base+4)
		args = append(args, loc.DriverID, loc.Latitude, loc.Longitude, loc.RecordedAt)
	}
	sb.WriteString(`) AS v (driver_id, latitude, longitude, recorded_at)
	WHERE drivers.id = v.driver_id
	  AND (drivers.last_location_update IS NULL OR drivers.last_location_update <= v.recorded_at)`)

	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("update driver positions: %w", err)
	}
	return nil
}

func latestPerDriver(batch []models.DriverLocation) []models.DriverLocation {
	byDriver := make(map[uuid.UUID]models.DriverLocation, len(batch))
	for _, loc := range batch {
		byDriver[loc.DriverID] = loc
	}
	out := make([]models.DriverLocation, 0, len(byDriver))
	for _, loc := range byDriver {
		out = append(out, loc)
	}
	return out
}
