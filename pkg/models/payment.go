package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusProcessing        PaymentStatus = "PROCESSING"
	PaymentStatusCompleted         PaymentStatus = "COMPLETED"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// Payment is the settlement record for a completed trip
type Payment struct {
	ID               uuid.UUID     `json:"id" db:"id"`
	TripID           uuid.UUID     `json:"trip_id" db:"trip_id"`
	RiderID          uuid.UUID     `json:"rider_id" db:"rider_id"`
	Amount           float64       `json:"amount" db:"amount"`
	Currency         string        `json:"currency" db:"currency"`
	PaymentMethodID  string        `json:"payment_method_id" db:"payment_method_id"`
	Status           PaymentStatus `json:"status" db:"status"`
	IdempotencyKey   string        `json:"idempotency_key" db:"idempotency_key"`
	Attempts         int           `json:"attempts" db:"attempts"`
	PSPTransactionID *string       `json:"psp_transaction_id,omitempty" db:"psp_transaction_id"`
	FailureReason    *string       `json:"failure_reason,omitempty" db:"failure_reason"`
	RefundedAmount   float64       `json:"refunded_amount" db:"refunded_amount"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt         *time.Time    `json:"failed_at,omitempty" db:"failed_at"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}

// Refund is a full or partial reversal of a completed payment
type Refund struct {
	ID          uuid.UUID `json:"id" db:"id"`
	PaymentID   uuid.UUID `json:"payment_id" db:"payment_id"`
	Amount      float64   `json:"amount" db:"amount"`
	Reason      string    `json:"reason" db:"reason"`
	PSPRefundID *string   `json:"psp_refund_id,omitempty" db:"psp_refund_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Receipt is the itemized record issued to the rider at settlement
type Receipt struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TripID       uuid.UUID `json:"trip_id" db:"trip_id"`
	RiderID      uuid.UUID `json:"rider_id" db:"rider_id"`
	BaseFare     float64   `json:"base_fare" db:"base_fare"`
	DistanceFare float64   `json:"distance_fare" db:"distance_fare"`
	TimeFare     float64   `json:"time_fare" db:"time_fare"`
	SurgeAmount  float64   `json:"surge_amount" db:"surge_amount"`
	Discount     float64   `json:"discount" db:"discount"`
	Tax          float64   `json:"tax" db:"tax"`
	Total        float64   `json:"total" db:"total"`
	Currency     string    `json:"currency" db:"currency"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Earning is the driver-side share of a settled trip
type Earning struct {
	ID          uuid.UUID `json:"id" db:"id"`
	DriverID    uuid.UUID `json:"driver_id" db:"driver_id"`
	TripID      uuid.UUID `json:"trip_id" db:"trip_id"`
	GrossFare   float64   `json:"gross_fare" db:"gross_fare"`
	PlatformFee float64   `json:"platform_fee" db:"platform_fee"`
	NetEarning  float64   `json:"net_earning" db:"net_earning"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ProcessPaymentRequest initiates settlement for a completed trip
type ProcessPaymentRequest struct {
	TripID          uuid.UUID `json:"trip_id" binding:"required"`
	PaymentMethodID string    `json:"payment_method_id" binding:"required"`
	IdempotencyKey  string    `json:"idempotency_key" binding:"required"`
}

// RefundPaymentRequest reverses part or all of a completed payment
type RefundPaymentRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Reason string  `json:"reason" binding:"required"`
}

// RefundPaymentResponse reports the refund outcome
type RefundPaymentResponse struct {
	RefundID uuid.UUID     `json:"refund_id"`
	Status   PaymentStatus `json:"status"`
}

// EarningsSummary aggregates a driver's earnings over a period
type EarningsSummary struct {
	DriverID     uuid.UUID `json:"driver_id"`
	TripCount    int       `json:"trip_count"`
	GrossFare    float64   `json:"gross_fare"`
	PlatformFees float64   `json:"platform_fees"`
	NetEarnings  float64   `json:"net_earnings"`
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
}
