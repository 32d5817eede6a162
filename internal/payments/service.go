package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/config"
	"github.com/velocab/ridecore/pkg/database"
	"github.com/velocab/ridecore/pkg/idempotency"
	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/metrics"
	"github.com/velocab/ridecore/pkg/models"
)

// Notifier delivers payment outcome notifications to riders.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, rideID *uuid.UUID, notifType, title, body string, data map[string]interface{}) error
}

// Service settles completed trips and manages retries and refunds.
type Service struct {
	repo     RepositoryInterface
	store    idempotency.Store
	gateway  Gateway
	notifier Notifier
	cfg      *config.PaymentsConfig
}

// NewService creates the payments service. notifier may be nil.
func NewService(repo RepositoryInterface, store idempotency.Store, gateway Gateway, notifier Notifier, cfg *config.PaymentsConfig) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		cfg:      cfg,
	}
}

// ProcessPayment settles a completed trip. Replays of the same idempotency
// key return the original outcome without touching the provider. A declined
// charge is a successful operation whose payment ends in FAILED.
func (s *Service) ProcessPayment(ctx context.Context, req models.ProcessPaymentRequest) (*models.Payment, error) {
	key := idempotency.PaymentKey(req.IdempotencyKey)

	if cached, found, err := s.store.Get(ctx, key); err == nil && found {
		var replay models.Payment
		if err := json.Unmarshal(cached, &replay); err == nil {
			metrics.PaymentOutcomes.WithLabelValues("replayed").Inc()
			return &replay, nil
		}
		logger.WarnContext(ctx, "discarding unreadable idempotency record",
			zap.String("key", req.IdempotencyKey),
		)
	} else if err != nil {
		logger.WarnContext(ctx, "idempotency lookup failed",
			zap.String("key", req.IdempotencyKey),
			zap.Error(err),
		)
	}

	trip, err := s.repo.GetTripForSettlement(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	if trip.Status != models.TripStatusCompleted {
		return nil, common.NewValidationError("trip is not completed")
	}
	if trip.FinalFare == nil {
		return nil, common.NewValidationError("trip has no settled fare")
	}

	existing, err := s.repo.GetPaymentByTripID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == models.PaymentStatusCompleted ||
			existing.Status == models.PaymentStatusRefunded ||
			existing.Status == models.PaymentStatusPartiallyRefunded {
			return existing, nil
		}
		if existing.Attempts >= s.cfg.MaxAttempts {
			return nil, common.NewConflictError("payment attempts exhausted")
		}
	}

	payment, err := s.repo.UpsertPending(ctx, &models.Payment{
		ID:              uuid.New(),
		TripID:          trip.TripID,
		RiderID:         trip.RiderID,
		Amount:          *trip.FinalFare,
		Currency:        trip.Currency,
		PaymentMethodID: req.PaymentMethodID,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		if database.IsUniqueViolation(err, "payments_idempotency_key_key") {
			return nil, common.NewConflictError("idempotency key already used for another trip")
		}
		return nil, fmt.Errorf("failed to record pending payment: %w", err)
	}

	payment = s.charge(ctx, payment, trip.RideID, req.IdempotencyKey)
	s.cacheOutcome(ctx, key, payment)
	return payment, nil
}

// RetryPayment re-runs the charge for a FAILED payment. Attempts are capped;
// a payment that exhausted them stays FAILED.
func (s *Service) RetryPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusFailed {
		return nil, common.NewValidationError("only failed payments can be retried")
	}
	if payment.Attempts >= s.cfg.MaxAttempts {
		return nil, common.NewConflictError("payment attempts exhausted")
	}

	trip, err := s.repo.GetTripForSettlement(ctx, payment.TripID)
	if err != nil {
		return nil, err
	}

	retrying, err := s.repo.MarkRetrying(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark payment retrying: %w", err)
	}
	if retrying == nil {
		// Another actor moved the payment out of FAILED first.
		return nil, common.NewConflictError("payment retry already in progress")
	}

	// A distinct provider key per attempt, so the retry is a fresh charge
	// rather than a replay of the failed one.
	providerKey := fmt.Sprintf("%s:attempt:%d", retrying.IdempotencyKey, retrying.Attempts)
	return s.charge(ctx, retrying, trip.RideID, providerKey), nil
}

// Refund reverses part or all of a settled payment.
func (s *Service) Refund(ctx context.Context, paymentID uuid.UUID, req models.RefundPaymentRequest) (*models.RefundPaymentResponse, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusCompleted &&
		payment.Status != models.PaymentStatusPartiallyRefunded {
		return nil, common.NewValidationError("only completed payments can be refunded")
	}

	remaining := payment.Amount - payment.RefundedAmount
	if req.Amount > remaining {
		return nil, common.NewValidationError("refund amount exceeds amount paid")
	}
	if payment.PSPTransactionID == nil {
		return nil, common.NewInternalError("payment has no provider reference", nil)
	}

	refundRef, err := s.gateway.Refund(ctx, *payment.PSPTransactionID, toMinorUnits(req.Amount), req.Reason)
	if err != nil {
		return nil, err
	}

	newStatus := models.PaymentStatusPartiallyRefunded
	if payment.RefundedAmount+req.Amount >= payment.Amount {
		newStatus = models.PaymentStatusRefunded
	}

	refund := &models.Refund{
		ID:          uuid.New(),
		PaymentID:   payment.ID,
		Amount:      req.Amount,
		Reason:      req.Reason,
		PSPRefundID: &refundRef,
	}
	if err := s.repo.ApplyRefund(ctx, refund, newStatus); err != nil {
		// The provider refunded but the row write failed; surface loudly so
		// reconciliation can repair the record.
		logger.ErrorContext(ctx, "refund recorded at provider but not persisted",
			zap.String("payment_id", payment.ID.String()),
			zap.String("psp_refund_id", refundRef),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to persist refund: %w", err)
	}

	metrics.PaymentOutcomes.WithLabelValues("refunded").Inc()
	return &models.RefundPaymentResponse{RefundID: refund.ID, Status: newStatus}, nil
}

// GetPayment loads a payment by id.
func (s *Service) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	return s.repo.GetPayment(ctx, paymentID)
}

// GetReceipt loads the receipt issued for a trip.
func (s *Service) GetReceipt(ctx context.Context, tripID uuid.UUID) (*models.Receipt, error) {
	return s.repo.GetReceiptByTripID(ctx, tripID)
}

// charge runs the provider call and records the outcome. The returned
// payment reflects the final status, COMPLETED or FAILED.
func (s *Service) charge(ctx context.Context, payment *models.Payment, rideID uuid.UUID, providerKey string) *models.Payment {
	pspRef, chargeErr := s.gateway.Charge(ctx, toMinorUnits(payment.Amount), payment.Currency, payment.PaymentMethodID, providerKey)
	if chargeErr == nil {
		completed, err := s.repo.MarkCompleted(ctx, payment.ID, pspRef)
		if err != nil {
			logger.ErrorContext(ctx, "charge settled but payment row not updated",
				zap.String("payment_id", payment.ID.String()),
				zap.String("psp_ref", pspRef),
				zap.Error(err),
			)
			payment.Status = models.PaymentStatusCompleted
			payment.PSPTransactionID = &pspRef
		} else {
			payment = completed
		}

		metrics.PaymentOutcomes.WithLabelValues("completed").Inc()
		s.notify(ctx, payment, rideID, models.NotificationPaymentSuccess,
			"Payment successful",
			fmt.Sprintf("Your payment of %.2f %s was processed.", payment.Amount, payment.Currency))
		return payment
	}

	failed, err := s.repo.MarkFailed(ctx, payment.ID, chargeErr.Error())
	if err != nil {
		logger.ErrorContext(ctx, "failed charge not recorded",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
		reason := chargeErr.Error()
		payment.Status = models.PaymentStatusFailed
		payment.FailureReason = &reason
	} else {
		payment = failed
	}

	metrics.PaymentOutcomes.WithLabelValues("failed").Inc()
	s.notify(ctx, payment, rideID, models.NotificationPaymentFailed,
		"Payment failed",
		"We could not process your payment. Please try again or use another method.")
	return payment
}

func (s *Service) notify(ctx context.Context, payment *models.Payment, rideID uuid.UUID, notifType, title, body string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, payment.RiderID, &rideID, notifType, title, body, map[string]interface{}{
		"payment_id": payment.ID.String(),
		"status":     string(payment.Status),
	})
	if err != nil {
		logger.WarnContext(ctx, "payment notification failed",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) cacheOutcome(ctx context.Context, key string, payment *models.Payment) {
	body, err := json.Marshal(payment)
	if err != nil {
		logger.WarnContext(ctx, "failed to encode payment for idempotency cache", zap.Error(err))
		return
	}
	if _, err := s.store.Put(ctx, key, body, s.cfg.IdempotencyTTL); err != nil {
		logger.WarnContext(ctx, "failed to cache payment outcome",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
	}
}
