package models

import (
	"time"

	"github.com/google/uuid"
)

// DriverLocation is one persisted position ping. The hot path lives in the
// in-memory geo index; these rows are the durable history.
type DriverLocation struct {
	DriverID   uuid.UUID `json:"driver_id" db:"driver_id"`
	Latitude   float64   `json:"latitude" db:"latitude"`
	Longitude  float64   `json:"longitude" db:"longitude"`
	Heading    *float64  `json:"heading,omitempty" db:"heading"`
	Speed      *float64  `json:"speed,omitempty" db:"speed"`
	Accuracy   *float64  `json:"accuracy,omitempty" db:"accuracy"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}
