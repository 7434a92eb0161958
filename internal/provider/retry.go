package provider

import (
	"context"
	"time"
)

// Retry calls fn until it succeeds, fails with a non-transient error, or
// maxRetries additional attempts are used. The wait doubles after each try.
func Retry(ctx context.Context, maxRetries int, backoff time.Duration, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				if lastErr != nil {
					return lastErr
				}
				return ctx.Err()
			case <-timer.C:
				backoff *= 2
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if k, ok := KindOf(err); !ok || !k.Retryable() {
			return err
		}
		lastErr = err
	}
	return lastErr
}
