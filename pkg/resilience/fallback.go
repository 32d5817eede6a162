package resilience

import (
	"context"

	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/logger"
)

// FallbackFunc is executed when the breaker is open or overloaded.
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// DropFallback logs and swallows the open-breaker error. Suited to
// best-effort side channels (SMS, push) where the durable record already
// exists and a dropped delivery is acceptable.
func DropFallback(name string) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		logger.WarnContext(ctx, "request dropped by open circuit breaker",
			zap.String("breaker", name),
			zap.Error(err),
		)
		return nil, nil
	}
}
