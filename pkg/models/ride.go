package models

import (
	"time"

	"github.com/google/uuid"
)

// RideStatus represents the status of a ride
type RideStatus string

const (
	RideStatusSearching      RideStatus = "SEARCHING"
	RideStatusMatched        RideStatus = "MATCHED"
	RideStatusDriverArriving RideStatus = "DRIVER_ARRIVING"
	RideStatusArrived        RideStatus = "ARRIVED"
	RideStatusInProgress     RideStatus = "IN_PROGRESS"
	RideStatusCompleted      RideStatus = "COMPLETED"
	RideStatusCancelled      RideStatus = "CANCELLED"
	RideStatusFailed         RideStatus = "FAILED"
)

// Terminal reports whether no further transitions are legal from s.
func (s RideStatus) Terminal() bool {
	switch s {
	case RideStatusCompleted, RideStatusCancelled, RideStatusFailed:
		return true
	}
	return false
}

// RideType is the requested vehicle tier
type RideType string

const (
	RideTypeStandard RideType = "STANDARD"
	RideTypePremium  RideType = "PREMIUM"
	RideTypeXL       RideType = "XL"
)

// ValidRideType reports whether t is a known tier.
func ValidRideType(t RideType) bool {
	switch t {
	case RideTypeStandard, RideTypePremium, RideTypeXL:
		return true
	}
	return false
}

// CancelActor identifies who cancelled a ride
type CancelActor string

const (
	CancelledByRider  CancelActor = "rider"
	CancelledByDriver CancelActor = "driver"
	CancelledBySystem CancelActor = "system"
)

// Ride represents a rider's request for transport
type Ride struct {
	ID                 uuid.UUID    `json:"id" db:"id"`
	RiderID            uuid.UUID    `json:"rider_id" db:"rider_id"`
	DriverID           *uuid.UUID   `json:"driver_id,omitempty" db:"driver_id"`
	Status             RideStatus   `json:"status" db:"status"`
	RideType           RideType     `json:"ride_type" db:"ride_type"`
	PickupLatitude     float64      `json:"pickup_latitude" db:"pickup_latitude"`
	PickupLongitude    float64      `json:"pickup_longitude" db:"pickup_longitude"`
	PickupAddress      *string      `json:"pickup_address,omitempty" db:"pickup_address"`
	DropoffLatitude    float64      `json:"dropoff_latitude" db:"dropoff_latitude"`
	DropoffLongitude   float64      `json:"dropoff_longitude" db:"dropoff_longitude"`
	DropoffAddress     *string      `json:"dropoff_address,omitempty" db:"dropoff_address"`
	EstimatedDistance  float64      `json:"estimated_distance" db:"estimated_distance"` // kilometres
	EstimatedDuration  int          `json:"estimated_duration" db:"estimated_duration"` // minutes
	EstimatedFare      float64      `json:"estimated_fare" db:"estimated_fare"`
	SurgeMultiplier    float64      `json:"surge_multiplier" db:"surge_multiplier"`
	PaymentMethodID    *string      `json:"payment_method_id,omitempty" db:"payment_method_id"`
	IdempotencyKey     *string      `json:"idempotency_key,omitempty" db:"idempotency_key"`
	SearchAttempts     int          `json:"search_attempts" db:"search_attempts"`
	Rating             *int         `json:"rating,omitempty" db:"rating"`
	Feedback           *string      `json:"feedback,omitempty" db:"feedback"`
	CancelledBy        *CancelActor `json:"cancelled_by,omitempty" db:"cancelled_by"`
	CancellationReason *string      `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	CancellationFee    *int64       `json:"cancellation_fee,omitempty" db:"cancellation_fee"` // integer rupees, metadata only
	ScheduledAt        *time.Time   `json:"scheduled_at,omitempty" db:"scheduled_at"`
	MatchedAt          *time.Time   `json:"matched_at,omitempty" db:"matched_at"`
	CancelledAt        *time.Time   `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CompletedAt        *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`
}

// LatLng is a bare coordinate pair carried in requests
type LatLng struct {
	Latitude  float64 `json:"lat" binding:"min=-90,max=90"`
	Longitude float64 `json:"lng" binding:"min=-180,max=180"`
	Address   *string `json:"address,omitempty"`
}

// CreateRideRequest represents a ride request from a rider
type CreateRideRequest struct {
	RiderID         uuid.UUID  `json:"rider_id" binding:"required"`
	Pickup          LatLng     `json:"pickup" binding:"required"`
	Dropoff         LatLng     `json:"dropoff" binding:"required"`
	RideType        RideType   `json:"ride_type" binding:"required,oneof=STANDARD PREMIUM XL"`
	PaymentMethodID *string    `json:"payment_method_id,omitempty"`
	ScheduledAt     *time.Time `json:"scheduled_at,omitempty"`
	IdempotencyKey  string     `json:"idempotency_key" binding:"required"`
}

// CancelRideRequest represents a cancellation request
type CancelRideRequest struct {
	CancelledBy CancelActor `json:"cancelled_by" binding:"required,oneof=rider driver system"`
	Reason      *string     `json:"reason,omitempty"`
}

// AcceptRideRequest carries the driver accepting a ride
type AcceptRideRequest struct {
	DriverID uuid.UUID `json:"driver_id" binding:"required"`
}

// RideRatingRequest represents a request to rate a completed ride
type RideRatingRequest struct {
	Rating   int     `json:"rating" binding:"required,min=1,max=5"`
	Feedback *string `json:"feedback,omitempty"`
}

// AcceptRideResponse echoes a successful match
type AcceptRideResponse struct {
	RideID  uuid.UUID `json:"ride_id"`
	Message string    `json:"message"`
}

// EstimateFareRequest asks for a fare quote without creating a ride
type EstimateFareRequest struct {
	Pickup   LatLng   `json:"pickup" binding:"required"`
	Dropoff  LatLng   `json:"dropoff" binding:"required"`
	RideType RideType `json:"ride_type" binding:"required,oneof=STANDARD PREMIUM XL"`
}

// FareEstimate is the response to an estimate request
type FareEstimate struct {
	EstimatedDistance float64 `json:"estimated_distance"` // kilometres
	EstimatedDuration int     `json:"estimated_duration"` // minutes
	EstimatedFare     float64 `json:"estimated_fare"`
	SurgeMultiplier   float64 `json:"surge_multiplier"`
	Currency          string  `json:"currency"`
}
