package models

import (
	"time"

	"github.com/google/uuid"
)

// Ride event types recorded in the audit trail and published on ride topics
const (
	EventRideCreated    = "ride_created"
	EventDriverMatched  = "driver_matched"
	EventDriverArriving = "driver_arriving"
	EventDriverArrived  = "driver_arrived"
	EventTripStarted    = "trip_started"
	EventTripCompleted  = "trip_completed"
	EventRideCancelled  = "ride_cancelled"
	EventMatchingFailed = "matching_failed"
)

// RideEvent is an append-only audit record for a ride
type RideEvent struct {
	ID        uuid.UUID              `json:"id" db:"id"`
	RideID    uuid.UUID              `json:"ride_id" db:"ride_id"`
	Type      string                 `json:"type" db:"type"`
	Payload   map[string]interface{} `json:"payload,omitempty" db:"payload"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}
