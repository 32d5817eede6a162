// Package payments settles completed trips against a payment service
// provider. Settlement is idempotent end to end: the same idempotency key
// always replays the original outcome, byte for byte.
package payments

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/refund"
)

// Gateway abstracts the payment service provider. Amounts are in minor
// units (paise for INR, cents for USD).
type Gateway interface {
	// Charge captures amountMinor against the rider's payment method and
	// returns the provider transaction reference.
	Charge(ctx context.Context, amountMinor int64, currency, methodID, idemKey string) (pspRef string, err error)

	// Refund reverses amountMinor of a prior charge and returns the
	// provider refund reference.
	Refund(ctx context.Context, pspRef string, amountMinor int64, reason string) (refundRef string, err error)
}

// StripeGateway settles payments through Stripe PaymentIntents.
type StripeGateway struct{}

// NewStripeGateway configures the global Stripe key and returns the gateway.
func NewStripeGateway(apiKey string) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{}
}

// Charge creates and confirms a PaymentIntent in one call. The idempotency
// key is forwarded to Stripe so a retried charge never double-bills.
func (g *StripeGateway) Charge(ctx context.Context, amountMinor int64, currency, methodID, idemKey string) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amountMinor),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(methodID),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	params.Context = ctx
	if idemKey != "" {
		params.IdempotencyKey = stripe.String(idemKey)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to confirm payment intent: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return "", fmt.Errorf("payment intent %s not settled: status %s", pi.ID, pi.Status)
	}
	return pi.ID, nil
}

// Refund reverses part or all of a settled PaymentIntent.
func (g *StripeGateway) Refund(ctx context.Context, pspRef string, amountMinor int64, reason string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(pspRef),
		Amount:        stripe.Int64(amountMinor),
	}
	params.Context = ctx
	if reason != "" {
		params.AddMetadata("reason", reason)
	}

	r, err := refund.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create refund: %w", err)
	}
	return r.ID, nil
}

// toMinorUnits converts a major-unit amount to provider minor units.
func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// isStripeRetryable reports whether a Stripe error is transient. Card
// declines and invalid requests never succeed on retry; rate limits and
// server errors do.
func isStripeRetryable(err error) bool {
	if err == nil {
		return false
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.Type == stripe.ErrorTypeCard || stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return false
		}
		if stripeErr.Type == stripe.ErrorTypeAPI {
			return true
		}
		switch stripeErr.HTTPStatusCode {
		case 408, 429:
			return true
		}
		if stripeErr.HTTPStatusCode >= 500 {
			return true
		}
		return false
	}

	// Non-Stripe errors are transport failures; worth another try.
	return true
}
