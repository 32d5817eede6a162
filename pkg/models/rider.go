package models

import (
	"time"

	"github.com/google/uuid"
)

// Rider represents a rider. Riders are created out-of-band; the core only
// mutates the rating aggregate and ride count at trip completion.
type Rider struct {
	ID         uuid.UUID `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Phone      string    `json:"phone" db:"phone"`
	Email      string    `json:"email" db:"email"`
	Rating     float64   `json:"rating" db:"rating"`
	TotalRides int       `json:"total_rides" db:"total_rides"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
