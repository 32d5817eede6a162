package payments

import (
	"context"

	"github.com/google/uuid"

	"github.com/velocab/ridecore/pkg/models"
)

// RepositoryInterface defines the persistence operations settlement needs.
type RepositoryInterface interface {
	GetTripForSettlement(ctx context.Context, tripID uuid.UUID) (*tripSettlement, error)
	UpsertPending(ctx context.Context, p *models.Payment) (*models.Payment, error)
	GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	GetPaymentByTripID(ctx context.Context, tripID uuid.UUID) (*models.Payment, error)
	MarkCompleted(ctx context.Context, paymentID uuid.UUID, pspRef string) (*models.Payment, error)
	MarkFailed(ctx context.Context, paymentID uuid.UUID, reason string) (*models.Payment, error)
	MarkRetrying(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	ApplyRefund(ctx context.Context, refund *models.Refund, newStatus models.PaymentStatus) error
	GetReceiptByTripID(ctx context.Context, tripID uuid.UUID) (*models.Receipt, error)
}
