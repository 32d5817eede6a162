package models

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus represents the status of a trip
type TripStatus string

const (
	TripStatusPending   TripStatus = "PENDING"
	TripStatusStarted   TripStatus = "STARTED"
	TripStatusCompleted TripStatus = "COMPLETED"
	TripStatusCancelled TripStatus = "CANCELLED"
)

// RoutePoint is a single sampled position on a trip's route
type RoutePoint struct {
	Latitude  float64    `json:"lat"`
	Longitude float64    `json:"lng"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Trip is the execution phase of a ride. Pricing inputs are frozen at
// creation so later config changes never alter an in-flight fare.
type Trip struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	RideID         uuid.UUID    `json:"ride_id" db:"ride_id"`
	DriverID       uuid.UUID    `json:"driver_id" db:"driver_id"`
	Status         TripStatus   `json:"status" db:"status"`
	StartOTP       string       `json:"-" db:"start_otp"`
	StartTime      *time.Time   `json:"start_time,omitempty" db:"start_time"`
	EndTime        *time.Time   `json:"end_time,omitempty" db:"end_time"`
	ActualDistance *float64     `json:"actual_distance,omitempty" db:"actual_distance"` // kilometres
	RoutePath      []RoutePoint `json:"route_path,omitempty" db:"route_path"`
	BaseFare       float64      `json:"base_fare" db:"base_fare"`
	PerKmRate      float64      `json:"per_km_rate" db:"per_km_rate"`
	PerMinRate     float64      `json:"per_min_rate" db:"per_min_rate"`
	DistanceFare   *float64     `json:"distance_fare,omitempty" db:"distance_fare"`
	TimeFare       *float64     `json:"time_fare,omitempty" db:"time_fare"`
	SurgeAmount    *float64     `json:"surge_amount,omitempty" db:"surge_amount"`
	Discount       float64      `json:"discount" db:"discount"`
	FinalFare      *float64     `json:"final_fare,omitempty" db:"final_fare"`
	PlatformFee    *float64     `json:"platform_fee,omitempty" db:"platform_fee"`
	DriverEarnings *float64     `json:"driver_earnings,omitempty" db:"driver_earnings"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// StartTripRequest carries the OTP gate for trip start
type StartTripRequest struct {
	StartOTP string `json:"start_otp" binding:"required,len=4,numeric"`
}

// EndTripRequest carries the trip completion inputs
type EndTripRequest struct {
	EndLocation    LatLng       `json:"end_location" binding:"required"`
	ActualDistance float64      `json:"actual_distance" binding:"required,gt=0"` // kilometres
	RoutePath      []RoutePoint `json:"route_path,omitempty"`
}

// MarkArrivedResponse returns the trip start OTP to the driver flow
type MarkArrivedResponse struct {
	TripID   uuid.UUID `json:"trip_id"`
	StartOTP string    `json:"start_otp"`
}
