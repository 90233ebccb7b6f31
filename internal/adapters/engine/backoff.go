package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/eleven-am/triageflow/internal/domain"
)

// backoffDelay computes the delay before retry attempt n (0-based):
// base * 2^n, clamped to the configured max, with ±50% jitter.
func backoffDelay(config domain.Config, attempt int) time.Duration {
	delay := config.RetryBaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= config.RetryMaxDelay {
			delay = config.RetryMaxDelay
			break
		}
	}

	jitter := 0.5 + rand.Float64()
	return time.Duration(float64(delay) * jitter)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
