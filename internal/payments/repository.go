package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/database"
	"github.com/velocab/ridecore/pkg/models"
)

const paymentColumns = `id, trip_id, rider_id, amount, currency, payment_method_id,
	status, idempotency_key, attempts, psp_transaction_id, failure_reason,
	refunded_amount, completed_at, failed_at, created_at, updated_at`

// Repository persists payments, refunds and receipts.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a payments repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID,
		&p.TripID,
		&p.RiderID,
		&p.Amount,
		&p.Currency,
		&p.PaymentMethodID,
		&p.Status,
		&p.IdempotencyKey,
		&p.Attempts,
		&p.PSPTransactionID,
		&p.FailureReason,
		&p.RefundedAmount,
		&p.CompletedAt,
		&p.FailedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// tripSettlement is the slice of trip and ride state settlement needs.
type tripSettlement struct {
	TripID    uuid.UUID
	RideID    uuid.UUID
	DriverID  uuid.UUID
	RiderID   uuid.UUID
	Status    models.TripStatus
	FinalFare *float64
	Currency  string
}

// GetTripForSettlement loads the trip joined with its ride and receipt.
func (r *Repository) GetTripForSettlement(ctx context.Context, tripID uuid.UUID) (*tripSettlement, error) {
	query := `
		SELECT t.id, t.ride_id, t.driver_id, rd.rider_id, t.status, t.final_fare,
		       COALESCE(rc.currency, 'INR')
		FROM trips t
		JOIN rides rd ON rd.id = t.ride_id
		LEFT JOIN receipts rc ON rc.trip_id = t.id
		WHERE t.id = $1
	`

	var ts tripSettlement
	err := r.db.QueryRow(ctx, query, tripID).Scan(
		&ts.TripID,
		&ts.RideID,
		&ts.DriverID,
		&ts.RiderID,
		&ts.Status,
		&ts.FinalFare,
		&ts.Currency,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("trip not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trip for settlement: %w", err)
	}
	return &ts, nil
}

// UpsertPending creates the payment row for a trip or, when one already
// exists, moves it back to PENDING and bumps attempts. The original
// idempotency key is preserved across re-submissions.
func (r *Repository) UpsertPending(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	query := `
		INSERT INTO payments (id, trip_id, rider_id, amount, currency,
			payment_method_id, status, idempotency_key, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', $7, 1)
		ON CONFLICT (trip_id) DO UPDATE SET
			status = 'PENDING',
			payment_method_id = EXCLUDED.payment_method_id,
			attempts = payments.attempts + 1,
			failure_reason = NULL,
			failed_at = NULL,
			updated_at = now()
		RETURNING ` + paymentColumns

	args := []interface{}{p.ID, p.TripID, p.RiderID, p.Amount, p.Currency, p.PaymentMethodID, p.IdempotencyKey}
	return database.RetryableQueryRow(ctx, r.db, query, args, scanPayment)
}

// GetPayment loads a payment by id.
func (r *Repository) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	p, err := scanPayment(r.db.QueryRow(ctx, query, paymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("payment not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// GetPaymentByTripID loads the payment for a trip. Returns (nil, nil) when
// no settlement has been attempted yet.
func (r *Repository) GetPaymentByTripID(ctx context.Context, tripID uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE trip_id = $1`

	p, err := scanPayment(r.db.QueryRow(ctx, query, tripID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment by trip: %w", err)
	}
	return p, nil
}

// MarkCompleted records a successful charge.
func (r *Repository) MarkCompleted(ctx context.Context, paymentID uuid.UUID, pspRef string) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = 'COMPLETED',
		    psp_transaction_id = $2,
		    completed_at = now(),
		    failure_reason = NULL,
		    failed_at = NULL,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + paymentColumns

	return database.RetryableQueryRow(ctx, r.db, query, []interface{}{paymentID, pspRef}, scanPayment)
}

// MarkFailed records a failed charge with the provider's reason.
func (r *Repository) MarkFailed(ctx context.Context, paymentID uuid.UUID, reason string) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = 'FAILED',
		    failure_reason = $2,
		    failed_at = now(),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + paymentColumns

	return database.RetryableQueryRow(ctx, r.db, query, []interface{}{paymentID, reason}, scanPayment)
}

// MarkRetrying moves a FAILED payment back to PENDING and bumps attempts.
// Returns (nil, nil) when the payment is no longer FAILED, so concurrent
// retries cannot double-charge.
func (r *Repository) MarkRetrying(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = 'PENDING',
		    attempts = attempts + 1,
		    updated_at = now()
		WHERE id = $1 AND status = 'FAILED'
		RETURNING ` + paymentColumns

	p, err := scanPayment(r.db.QueryRow(ctx, query, paymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark payment retrying: %w", err)
	}
	return p, nil
}

// ApplyRefund records the refund row and the payment's new refunded state
// in one transaction.
func (r *Repository) ApplyRefund(ctx context.Context, refund *models.Refund, newStatus models.PaymentStatus) error {
	return database.RetryableTransaction(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO refunds (id, payment_id, amount, reason, psp_refund_id)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING created_at
		`, refund.ID, refund.PaymentID, refund.Amount, refund.Reason, refund.PSPRefundID).Scan(&refund.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create refund: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE payments
			SET refunded_amount = refunded_amount + $2,
			    status = $3,
			    updated_at = now()
			WHERE id = $1
		`, refund.PaymentID, refund.Amount, newStatus)
		if err != nil {
			return fmt.Errorf("failed to update refunded payment: %w", err)
		}
		return nil
	})
}

// GetReceiptByTripID loads the itemized receipt issued at trip completion.
func (r *Repository) GetReceiptByTripID(ctx context.Context, tripID uuid.UUID) (*models.Receipt, error) {
	query := `
		SELECT id, trip_id, rider_id, base_fare, distance_fare, time_fare,
		       surge_amount, discount, tax, total, currency, created_at
		FROM receipts
		WHERE trip_id = $1
	`

	var rc models.Receipt
	err := r.db.QueryRow(ctx, query, tripID).Scan(
		&rc.ID,
		&rc.TripID,
		&rc.RiderID,
		&rc.BaseFare,
		&rc.DistanceFare,
		&rc.TimeFare,
		&rc.SurgeAmount,
		&rc.Discount,
		&rc.Tax,
		&rc.Total,
		&rc.Currency,
		&rc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewNotFoundError("receipt not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return &rc, nil
}
