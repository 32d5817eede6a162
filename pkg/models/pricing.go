package models

import (
	"time"

	"github.com/google/uuid"
)

// PricingConfig is the active rate card for a (region, ride type) pair.
// The engine reads the active row; it never mutates pricing.
type PricingConfig struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Region     string    `json:"region" db:"region"`
	RideType   RideType  `json:"ride_type" db:"ride_type"`
	BaseFare   float64   `json:"base_fare" db:"base_fare"`
	PerKmRate  float64   `json:"per_km_rate" db:"per_km_rate"`
	PerMinRate float64   `json:"per_min_rate" db:"per_min_rate"`
	Currency   string    `json:"currency" db:"currency"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// SurgeZone is a demand area with a current multiplier. Zones carry the H3
// cells they cover; a zone without cells matches any pickup while active.
type SurgeZone struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Multiplier   float64   `json:"multiplier" db:"multiplier"`
	H3Resolution int       `json:"h3_resolution" db:"h3_resolution"`
	H3Cells      []string  `json:"h3_cells" db:"h3_cells"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}
