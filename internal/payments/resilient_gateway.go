package payments

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/config"
	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/resilience"
)

// ResilientGateway wraps a Gateway with a circuit breaker and retries so a
// degraded provider degrades settlement, not the whole engine.
type ResilientGateway struct {
	gateway Gateway
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewResilientGateway wraps gateway with the configured breaker thresholds.
func NewResilientGateway(gateway Gateway, cfg config.CircuitBreakerSettings) *ResilientGateway {
	settings := resilience.Settings{
		Name:             "stripe-api",
		Interval:         time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:          time.Duration(cfg.TimeoutSeconds) * time.Second,
		FailureThreshold: uint32(cfg.FailureThreshold),
		SuccessThreshold: uint32(cfg.SuccessThreshold),
	}

	breaker := resilience.NewCircuitBreaker(settings, func(ctx context.Context, err error) (interface{}, error) {
		logger.ErrorContext(ctx, "payment provider circuit open", zap.Error(err))
		return nil, common.NewDependencyError("payments are temporarily unavailable, please try again", err)
	})

	retryConfig := resilience.DefaultRetryConfig()
	retryConfig.MaxAttempts = 3
	retryConfig.InitialBackoff = 1 * time.Second
	retryConfig.MaxBackoff = 10 * time.Second
	retryConfig.RetryableChecker = isStripeRetryable

	return &ResilientGateway{
		gateway: gateway,
		breaker: breaker,
		retry:   retryConfig,
	}
}

// Charge charges through the breaker with retries on transient provider
// errors.
func (r *ResilientGateway) Charge(ctx context.Context, amountMinor int64, currency, methodID, idemKey string) (string, error) {
	result, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return r.gateway.Charge(ctx, amountMinor, currency, methodID, idemKey)
	})
	if err != nil {
		logger.ErrorContext(ctx, "charge failed after retries",
			zap.Int64("amount_minor", amountMinor),
			zap.String("currency", currency),
			zap.Error(err),
		)
		return "", mapGatewayError(err)
	}
	return result.(string), nil
}

// Refund refunds through the breaker with retries on transient provider
// errors.
func (r *ResilientGateway) Refund(ctx context.Context, pspRef string, amountMinor int64, reason string) (string, error) {
	result, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return r.gateway.Refund(ctx, pspRef, amountMinor, reason)
	})
	if err != nil {
		logger.ErrorContext(ctx, "refund failed after retries",
			zap.String("psp_ref", pspRef),
			zap.Int64("amount_minor", amountMinor),
			zap.Error(err),
		)
		return "", mapGatewayError(err)
	}
	return result.(string), nil
}

// mapGatewayError folds provider failures into the service error taxonomy.
func mapGatewayError(err error) error {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, resilience.ErrCircuitOpen) {
		return common.NewTimeoutError("payment provider timed out", err)
	}
	if isStripeRetryable(err) {
		return common.NewDependencyError("payment provider unavailable", err)
	}
	return err
}
