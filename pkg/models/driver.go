package models

import (
	"time"

	"github.com/google/uuid"
)

// DriverStatus represents the availability state of a driver
type DriverStatus string

const (
	DriverStatusOffline   DriverStatus = "OFFLINE"
	DriverStatusAvailable DriverStatus = "AVAILABLE"
	DriverStatusOnRide    DriverStatus = "ON_RIDE"
	DriverStatusBreak     DriverStatus = "BREAK"
)

// ExternallySettable reports whether a driver may set this status through
// the availability endpoint. ON_RIDE is owned by the ride engine.
func (s DriverStatus) ExternallySettable() bool {
	switch s {
	case DriverStatusOffline, DriverStatusAvailable, DriverStatusBreak:
		return true
	}
	return false
}

// Driver represents a driver and their vehicle
type Driver struct {
	ID                 uuid.UUID    `json:"id" db:"id"`
	Name               string       `json:"name" db:"name"`
	Phone              string       `json:"phone" db:"phone"`
	VehicleModel       string       `json:"vehicle_model" db:"vehicle_model"`
	VehiclePlate       string       `json:"vehicle_plate" db:"vehicle_plate"`
	VehicleType        RideType     `json:"vehicle_type" db:"vehicle_type"`
	Status             DriverStatus `json:"status" db:"status"`
	Rating             float64      `json:"rating" db:"rating"`
	AcceptanceRate     float64      `json:"acceptance_rate" db:"acceptance_rate"`
	TotalTrips         int          `json:"total_trips" db:"total_trips"`
	CurrentLatitude    *float64     `json:"current_latitude,omitempty" db:"current_latitude"`
	CurrentLongitude   *float64     `json:"current_longitude,omitempty" db:"current_longitude"`
	LastLocationUpdate *time.Time   `json:"last_location_update,omitempty" db:"last_location_update"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`
}

// UpdateAvailabilityRequest sets a driver's availability
type UpdateAvailabilityRequest struct {
	Status DriverStatus `json:"status" binding:"required,oneof=AVAILABLE OFFLINE BREAK"`
}

// DriverLocationUpdate is a single position ping from a driver's device
type DriverLocationUpdate struct {
	Latitude  float64  `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64  `json:"longitude" binding:"min=-180,max=180"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}
