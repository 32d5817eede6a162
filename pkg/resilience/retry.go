package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/velocab/ridecore/pkg/logger"
	"go.uber.org/zap"
)

// RetryConfig defines the configuration for retry behavior
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first)
	MaxAttempts int
	// InitialBackoff is the backoff before the second attempt
	InitialBackoff time.Duration
	// MaxBackoff caps the exponential growth
	MaxBackoff time.Duration
	// BackoffMultiplier is the exponential factor (typically 2.0)
	BackoffMultiplier float64
	// EnableJitter randomizes backoff to avoid thundering herds
	EnableJitter bool
	// RetryableChecker decides whether an error is worth retrying. When
	// nil, everything except context cancellation is retried.
	RetryableChecker func(error) bool
}

// DefaultRetryConfig returns a sensible default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		EnableJitter:      true,
	}
}

// Retry executes the operation with exponential backoff retry logic
func Retry(ctx context.Context, config RetryConfig, operation Operation) (interface{}, error) {
	return RetryWithName(ctx, config, operation, "unknown")
}

// RetryWithName executes the operation with retry logic and records metrics
// under the given operation name.
func RetryWithName(ctx context.Context, config RetryConfig, operation Operation, operationName string) (interface{}, error) {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result, err := operation(ctx)
		if err == nil {
			RecordRetryAttempt(operationName, true)
			if attempt > 1 {
				logger.Debug("operation succeeded after retry",
					zap.String("operation", operationName),
					zap.Int("attempt", attempt),
				)
			}
			return result, nil
		}

		RecordRetryAttempt(operationName, false)
		lastErr = err

		if !shouldRetry(err, config) {
			return nil, err
		}

		if attempt == config.MaxAttempts {
			logger.Warn("operation failed after all retry attempts",
				zap.String("operation", operationName),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			break
		}

		backoff := calculateBackoff(attempt, config)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, lastErr
}

// RetryWithBreaker combines retry logic with a circuit breaker
func RetryWithBreaker(ctx context.Context, config RetryConfig, breaker *CircuitBreaker, operation Operation) (interface{}, error) {
	return Retry(ctx, config, func(ctx context.Context) (interface{}, error) {
		return breaker.Execute(ctx, operation)
	})
}

func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	backoff := float64(config.InitialBackoff) * math.Pow(config.BackoffMultiplier, float64(attempt-1))
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}

	duration := time.Duration(backoff)
	if config.EnableJitter && duration > 0 {
		// Full jitter: anywhere between 0 and the computed backoff.
		duration = time.Duration(rand.Int63n(int64(duration)))
	}
	return duration
}

func shouldRetry(err error, config RetryConfig) bool {
	if err == nil {
		return false
	}

	if config.RetryableChecker != nil {
		return config.RetryableChecker(err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// An open breaker will stay open for its whole timeout; retrying
	// inside that window is wasted work.
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}

	return true
}
