package notifications

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/config"
	"github.com/velocab/ridecore/pkg/logger"
	"github.com/velocab/ridecore/pkg/resilience"
)

// breakerSettings converts configured thresholds into breaker settings.
func breakerSettings(name string, cfg config.CircuitBreakerSettings) resilience.Settings {
	return resilience.Settings{
		Name:             name,
		Interval:         time.Duration(cfg.IntervalSeconds) * time.Second,
		Timeout:          time.Duration(cfg.TimeoutSeconds) * time.Second,
		FailureThreshold: uint32(cfg.FailureThreshold),
		SuccessThreshold: uint32(cfg.SuccessThreshold),
	}
}

func senderRetryConfig(checker func(error) bool) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = 3
	cfg.InitialBackoff = 1 * time.Second
	cfg.MaxBackoff = 10 * time.Second
	cfg.RetryableChecker = checker
	return cfg
}

// ResilientSMSSender wraps an SMSSender with a circuit breaker and retries.
type ResilientSMSSender struct {
	sender  SMSSender
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewResilientSMSSender wraps sender. The breaker opens on consecutive
// provider failures so a degraded SMS provider cannot slow the engine down.
func NewResilientSMSSender(sender SMSSender, cfg config.CircuitBreakerSettings) *ResilientSMSSender {
	return &ResilientSMSSender{
		sender:  sender,
		breaker: resilience.NewCircuitBreaker(breakerSettings("twilio-sms", cfg), resilience.DropFallback("twilio-sms")),
		retry:   senderRetryConfig(isSMSRetryable),
	}
}

// SendSMS sends with retry and breaker protection.
func (r *ResilientSMSSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	result, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return r.sender.SendSMS(ctx, to, body)
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to send SMS",
			zap.String("to", maskPhone(to)),
			zap.Error(err),
		)
		return "", err
	}
	// Open breaker drops the delivery; there is no provider message ID.
	if result == nil {
		return "", nil
	}
	return result.(string), nil
}

// ResilientPushSender wraps a PushSender with a circuit breaker and retries.
type ResilientPushSender struct {
	sender  PushSender
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewResilientPushSender wraps sender.
func NewResilientPushSender(sender PushSender, cfg config.CircuitBreakerSettings) *ResilientPushSender {
	return &ResilientPushSender{
		sender:  sender,
		breaker: resilience.NewCircuitBreaker(breakerSettings("firebase-push", cfg), resilience.DropFallback("firebase-push")),
		retry:   senderRetryConfig(isPushRetryable),
	}
}

// SendPush sends with retry and breaker protection.
func (r *ResilientPushSender) SendPush(ctx context.Context, token, title, body string, data map[string]string) (string, error) {
	result, err := resilience.RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) (interface{}, error) {
		return r.sender.SendPush(ctx, token, title, body, data)
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to send push notification", zap.Error(err))
		return "", err
	}
	// Open breaker drops the delivery; there is no provider message ID.
	if result == nil {
		return "", nil
	}
	return result.(string), nil
}

// isSMSRetryable: rate limits and transient transport errors retry;
// invalid numbers and auth failures do not.
func isSMSRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "invalid") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "authenticate") {
		return false
	}
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection") ||
		strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "500") || strings.Contains(msg, "503")
}

func isPushRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "registration-token-not-registered") ||
		strings.Contains(msg, "invalid-argument") {
		return false
	}
	return strings.Contains(msg, "unavailable") ||
		strings.Contains(msg, "internal") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection")
}

// maskPhone keeps only the last four digits in logs.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
