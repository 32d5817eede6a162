package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/config"
	"github.com/velocab/ridecore/pkg/idempotency"
	"github.com/velocab/ridecore/pkg/models"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) GetTripForSettlement(ctx context.Context, tripID uuid.UUID) (*tripSettlement, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tripSettlement), args.Error(1)
}

func (m *mockRepository) UpsertPending(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockRepository) GetPayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockRepository) GetPaymentByTripID(ctx context.Context, tripID uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockRepository) MarkCompleted(ctx context.Context, paymentID uuid.UUID, pspRef string) (*models.Payment, error) {
	args := m.Called(ctx, paymentID, pspRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockRepository) MarkFailed(ctx context.Context, paymentID uuid.UUID, reason string) (*models.Payment, error) {
	args := m.Called(ctx, paymentID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockRepository) MarkRetrying(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockRepository) ApplyRefund(ctx context.Context, refund *models.Refund, newStatus models.PaymentStatus) error {
	args := m.Called(ctx, refund, newStatus)
	return args.Error(0)
}

func (m *mockRepository) GetReceiptByTripID(ctx context.Context, tripID uuid.UUID) (*models.Receipt, error) {
	args := m.Called(ctx, tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Receipt), args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Charge(ctx context.Context, amountMinor int64, currency, methodID, idemKey string) (string, error) {
	args := m.Called(ctx, amountMinor, currency, methodID, idemKey)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, pspRef string, amountMinor int64, reason string) (string, error) {
	args := m.Called(ctx, pspRef, amountMinor, reason)
	return args.String(0), args.Error(1)
}

func paymentsConfig() *config.PaymentsConfig {
	return &config.PaymentsConfig{
		MaxAttempts:    3,
		IdempotencyTTL: time.Hour,
	}
}

func completedTrip(fare float64) *tripSettlement {
	return &tripSettlement{
		TripID:    uuid.New(),
		RideID:    uuid.New(),
		DriverID:  uuid.New(),
		RiderID:   uuid.New(),
		Status:    models.TripStatusCompleted,
		FinalFare: &fare,
		Currency:  "INR",
	}
}

func TestProcessPaymentSuccess(t *testing.T) {
	repo := new(mockRepository)
	gateway := new(mockGateway)
	store := idempotency.NewMemoryStore()
	defer store.Close()
	service := NewService(repo, store, gateway, nil, paymentsConfig())
	ctx := context.Background()

	trip := completedTrip(233.28)
	req := models.ProcessPaymentRequest{
		TripID:          trip.TripID,
		PaymentMethodID: "pm_card",
		IdempotencyKey:  "idem-1",
	}

	pending := &models.Payment{
		ID:              uuid.New(),
		TripID:          trip.TripID,
		RiderID:         trip.RiderID,
		Amount:          233.28,
		Currency:        "INR",
		PaymentMethodID: "pm_card",
		IdempotencyKey:  "idem-1",
		Status:          models.PaymentStatusPending,
		Attempts:        1,
	}
	pspRef := "pi_123"
	completed := *pending
	completed.Status = models.PaymentStatusCompleted
	completed.PSPTransactionID = &pspRef

	repo.On("GetTripForSettlement", ctx, trip.TripID).Return(trip, nil)
	repo.On("GetPaymentByTripID", ctx, trip.TripID).Return(nil, nil)
	repo.On("UpsertPending", ctx, mock.AnythingOfType("*models.Payment")).Return(pending, nil)
	gateway.On("Charge", ctx, int64(23328), "INR", "pm_card", "idem-1").Return(pspRef, nil)
	repo.On("MarkCompleted", ctx, pending.ID, pspRef).Return(&completed, nil)

	payment, err := service.ProcessPayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, pspRef, *payment.PSPTransactionID)
	repo.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestProcessPaymentReplaySkipsGateway(t *testing.T) {
	repo := new(mockRepository)
	gateway := new(mockGateway)
	store := idempotency.NewMemoryStore()
	defer store.Close()
	service := NewService(repo, store, gateway, nil, paymentsConfig())
	ctx := context.Background()

	trip := completedTrip(100)
	req := models.ProcessPaymentRequest{
		TripID:          trip.TripID,
		PaymentMethodID: "pm_card",
		IdempotencyKey:  "idem-replay",
	}

	pending := &models.Payment{
		ID:             uuid.New(),
		TripID:         trip.TripID,
		RiderID:        trip.RiderID,
		Amount:         100,
		Currency:       "INR",
		IdempotencyKey: "idem-replay",
		Attempts:       1,
	}
	pspRef := "pi_once"
	completed := *pending
	completed.Status = models.PaymentStatusCompleted
	completed.PSPTransactionID = &pspRef

	repo.On("GetTripForSettlement", ctx, trip.TripID).Return(trip, nil).Once()
	repo.On("GetPaymentByTripID", ctx, trip.TripID).Return(nil, nil).Once()
	repo.On("UpsertPending", ctx, mock.AnythingOfType("*models.Payment")).Return(pending, nil).Once()
	gateway.On("Charge", ctx, int64(10000), "INR", mock.Anything, "idem-replay").Return(pspRef, nil).Once()
	repo.On("MarkCompleted", ctx, pending.ID, pspRef).Return(&completed, nil).Once()

	first, err := service.ProcessPayment(ctx, req)
	require.NoError(t, err)

	// Second submission with the same key replays the stored outcome
	// without touching the repository or the provider again.
	second, err := service.ProcessPayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Status, second.Status)
	gateway.AssertNumberOfCalls(t, "Charge", 1)
}

func TestProcessPaymentDeclineEndsFailed(t *testing.T) {
	repo := new(mockRepository)
	gateway := new(mockGateway)
	store := idempotency.NewMemoryStore()
	defer store.Close()
	service := NewService(repo, store, gateway, nil, paymentsConfig())
	ctx := context.Background()

	trip := completedTrip(150)
	req := models.ProcessPaymentRequest{
		TripID:          trip.TripID,
		PaymentMethodID: "pm_declined",
		IdempotencyKey:  "idem-decline",
	}

	pending := &models.Payment{ID: uuid.New(), TripID: trip.TripID, RiderID: trip.RiderID, Amount: 150, Currency: "INR", PaymentMethodID: "pm_declined", Attempts: 1}
	reason := "card declined"
	failed := *pending
	failed.Status = models.PaymentStatusFailed
	failed.FailureReason = &reason

	repo.On("GetTripForSettlement", ctx, trip.TripID).Return(trip, nil)
	repo.On("GetPaymentByTripID", ctx, trip.TripID).Return(nil, nil)
	repo.On("UpsertPending", ctx, mock.AnythingOfType("*models.Payment")).Return(pending, nil)
	gateway.On("Charge", ctx, int64(15000), "INR", "pm_declined", "idem-decline").Return("", errors.New("card declined"))
	repo.On("MarkFailed", ctx, pending.ID, "card declined").Return(&failed, nil)

	payment, err := service.ProcessPayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Equal(t, reason, *payment.FailureReason)
}

func TestProcessPaymentRequiresCompletedTrip(t *testing.T) {
	repo := new(mockRepository)
	store := idempotency.NewMemoryStore()
	defer store.Close()
	service := NewService(repo, store, new(mockGateway), nil, paymentsConfig())
	ctx := context.Background()

	trip := completedTrip(50)
	trip.Status = models.TripStatusStarted
	repo.On("GetTripForSettlement", ctx, trip.TripID).Return(trip, nil)

	_, err := service.ProcessPayment(ctx, models.ProcessPaymentRequest{
		TripID: trip.TripID, PaymentMethodID: "pm", IdempotencyKey: "k",
	})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindValidation))
}

func TestProcessPaymentReturnsExistingCompleted(t *testing.T) {
	repo := new(mockRepository)
	gateway := new(mockGateway)
	store := idempotency.NewMemoryStore()
	defer store.Close()
	service := NewService(repo, store, gateway, nil, paymentsConfig())
	ctx := context.Background()

	trip := completedTrip(90)
	existing := &models.Payment{ID: uuid.New(), TripID: trip.TripID, Status: models.PaymentStatusCompleted}

	repo.On("GetTripForSettlement", ctx, trip.TripID).Return(trip, nil)
	repo.On("GetPaymentByTripID", ctx, trip.TripID).Return(existing, nil)

	payment, err := service.ProcessPayment(ctx, models.ProcessPaymentRequest{
		TripID: trip.TripID, PaymentMethodID: "pm", IdempotencyKey: "fresh-key",
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, payment.ID)
	gateway.AssertNotCalled(t, "Charge")
}

func TestProcessPaymentAttemptsExhausted(t *testing.T) {
	repo := new(mockRepository)
	store := idempotency.NewMemoryStore()
	defer store.Close()
	service := NewService(repo, store, new(mockGateway), nil, paymentsConfig())
	ctx := context.Background()

	trip := completedTrip(90)
	existing := &models.Payment{ID: uuid.New(), TripID: trip.TripID, Status: models.PaymentStatusFailed, Attempts: 3}

	repo.On("GetTripForSettlement", ctx, trip.TripID).Return(trip, nil)
	repo.On("GetPaymentByTripID", ctx, trip.TripID).Return(existing, nil)

	_, err := service.ProcessPayment(ctx, models.ProcessPaymentRequest{
		TripID: trip.TripID, PaymentMethodID: "pm", IdempotencyKey: "k2",
	})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindConflict))
}

func TestRetryPaymentOnlyFromFailed(t *testing.T) {
	repo := new(mockRepository)
	store := idempotency.NewMemoryStore()
	defer store.Close()
	service := NewService(repo, store, new(mockGateway), nil, paymentsConfig())
	ctx := context.Background()

	payment := &models.Payment{ID: uuid.New(), Status: models.PaymentStatusCompleted}
	repo.On("GetPayment", ctx, payment.ID).Return(payment, nil)

	_, err := service.RetryPayment(ctx, payment.ID)
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindValidation))
}

func TestRetryPaymentSuccess(t *testing.T) {
	repo := new(mockRepository)
	gateway := new(mockGateway)
	store := idempotency.NewMemoryStore()
	defer store.Close()
	service := NewService(repo, store, gateway, nil, paymentsConfig())
	ctx := context.Background()

	trip := completedTrip(60)
	failed := &models.Payment{
		ID:             uuid.New(),
		TripID:         trip.TripID,
		RiderID:        trip.RiderID,
		Amount:         60,
		Currency:       "INR",
		IdempotencyKey: "idem-retry",
		Status:         models.PaymentStatusFailed,
		Attempts:       1,
	}
	retrying := *failed
	retrying.Status = models.PaymentStatusPending
	retrying.Attempts = 2

	pspRef := "pi_retry"
	completed := retrying
	completed.Status = models.PaymentStatusCompleted
	completed.PSPTransactionID = &pspRef

	repo.On("GetPayment", ctx, failed.ID).Return(failed, nil)
	repo.On("GetTripForSettlement", ctx, trip.TripID).Return(trip, nil)
	repo.On("MarkRetrying", ctx, failed.ID).Return(&retrying, nil)
	gateway.On("Charge", ctx, int64(6000), "INR", mock.Anything, "idem-retry:attempt:2").Return(pspRef, nil)
	repo.On("MarkCompleted", ctx, failed.ID, pspRef).Return(&completed, nil)

	payment, err := service.RetryPayment(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, 2, payment.Attempts)
}

func TestRefundPartialThenStatus(t *testing.T) {
	repo := new(mockRepository)
	gateway := new(mockGateway)
	store := idempotency.NewMemoryStore()
	defer store.Close()
	service := NewService(repo, store, gateway, nil, paymentsConfig())
	ctx := context.Background()

	pspRef := "pi_paid"
	payment := &models.Payment{
		ID:               uuid.New(),
		Amount:           200,
		RefundedAmount:   0,
		Status:           models.PaymentStatusCompleted,
		PSPTransactionID: &pspRef,
	}

	repo.On("GetPayment", ctx, payment.ID).Return(payment, nil)
	gateway.On("Refund", ctx, pspRef, int64(5000), "late pickup").Return("re_1", nil)
	repo.On("ApplyRefund", ctx, mock.AnythingOfType("*models.Refund"), models.PaymentStatusPartiallyRefunded).Return(nil)

	result, err := service.Refund(ctx, payment.ID, models.RefundPaymentRequest{Amount: 50, Reason: "late pickup"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartiallyRefunded, result.Status)
}

func TestRefundFullSetsRefunded(t *testing.T) {
	repo := new(mockRepository)
	gateway := new(mockGateway)
	store := idempotency.NewMemoryStore()
	defer store.Close()
	service := NewService(repo, store, gateway, nil, paymentsConfig())
	ctx := context.Background()

	pspRef := "pi_paid"
	payment := &models.Payment{
		ID:               uuid.New(),
		Amount:           200,
		Status:           models.PaymentStatusCompleted,
		PSPTransactionID: &pspRef,
	}

	repo.On("GetPayment", ctx, payment.ID).Return(payment, nil)
	gateway.On("Refund", ctx, pspRef, int64(20000), "cancelled").Return("re_2", nil)
	repo.On("ApplyRefund", ctx, mock.AnythingOfType("*models.Refund"), models.PaymentStatusRefunded).Return(nil)

	result, err := service.Refund(ctx, payment.ID, models.RefundPaymentRequest{Amount: 200, Reason: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, result.Status)
}

func TestRefundRejectsExcessAmount(t *testing.T) {
	repo := new(mockRepository)
	store := idempotency.NewMemoryStore()
	defer store.Close()
	service := NewService(repo, store, new(mockGateway), nil, paymentsConfig())
	ctx := context.Background()

	pspRef := "pi_paid"
	payment := &models.Payment{
		ID:               uuid.New(),
		Amount:           100,
		RefundedAmount:   80,
		Status:           models.PaymentStatusPartiallyRefunded,
		PSPTransactionID: &pspRef,
	}
	repo.On("GetPayment", ctx, payment.ID).Return(payment, nil)

	_, err := service.Refund(ctx, payment.ID, models.RefundPaymentRequest{Amount: 30, Reason: "overshoot"})
	require.Error(t, err)
	assert.True(t, common.IsKind(err, common.KindValidation))
}
