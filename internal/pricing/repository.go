package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velocab/ridecore/pkg/models"
)

// Repository reads pricing configuration and surge zones. The engine never
// writes these tables; they are managed out-of-band.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a pricing repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetActiveConfig returns the active rate card for (region, rideType).
// Returns nil without error when no active row exists so the service can
// fall back to configured defaults.
func (r *Repository) GetActiveConfig(ctx context.Context, region string, rideType models.RideType) (*models.PricingConfig, error) {
	query := `
		SELECT id, region, ride_type, base_fare, per_km_rate, per_min_rate,
		       currency, is_active, created_at, updated_at
		FROM pricing_configs
		WHERE region = $1 AND ride_type = $2 AND is_active
	`

	cfg := &models.PricingConfig{}
	err := r.db.QueryRow(ctx, query, region, rideType).Scan(
		&cfg.ID,
		&cfg.Region,
		&cfg.RideType,
		&cfg.BaseFare,
		&cfg.PerKmRate,
		&cfg.PerMinRate,
		&cfg.Currency,
		&cfg.IsActive,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get pricing config: %w", err)
	}
	return cfg, nil
}

// ListActiveSurgeZones returns all active surge zones.
func (r *Repository) ListActiveSurgeZones(ctx context.Context) ([]models.SurgeZone, error) {
	query := `
		SELECT id, name, multiplier, h3_resolution, h3_cells, is_active, created_at, updated_at
		FROM surge_zones
		WHERE is_active
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list surge zones: %w", err)
	}
	defer rows.Close()

	var zones []models.SurgeZone
	for rows.Next() {
		var z models.SurgeZone
		if err := rows.Scan(&z.ID, &z.Name, &z.Multiplier, &z.H3Resolution, &z.H3Cells,
			&z.IsActive, &z.CreatedAt, &z.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan surge zone: %w", err)
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}
