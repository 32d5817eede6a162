package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification types emitted by the ride engine
const (
	NotificationRideCreated    = "RIDE_CREATED"
	NotificationDriverMatched  = "DRIVER_MATCHED"
	NotificationDriverArriving = "DRIVER_ARRIVING"
	NotificationDriverArrived  = "DRIVER_ARRIVED"
	NotificationTripStarted    = "TRIP_STARTED"
	NotificationTripCompleted  = "TRIP_COMPLETED"
	NotificationRideCancelled  = "RIDE_CANCELLED"
	NotificationNoDriversFound = "NO_DRIVERS_FOUND"
	NotificationPaymentSuccess = "PAYMENT_SUCCESS"
	NotificationPaymentFailed  = "PAYMENT_FAILED"
)

// Notification is a durable user-visible event. Rows are append-only from
// the core's perspective.
type Notification struct {
	ID        uuid.UUID              `json:"id" db:"id"`
	UserID    uuid.UUID              `json:"user_id" db:"user_id"`
	RideID    *uuid.UUID             `json:"ride_id,omitempty" db:"ride_id"`
	Type      string                 `json:"type" db:"type"`
	Title     string                 `json:"title" db:"title"`
	Body      string                 `json:"body" db:"body"`
	Data      map[string]interface{} `json:"data,omitempty" db:"data"`
	CreatedAt time.Time              `json:"created_at" db:"created_at"`
}
