// Package retry provides a small retry helper with exponential backoff.
package retry

import (
	"context"
	"time"
)

// Do calls fn up to maxAttempts times, doubling the delay between attempts.
// It stops early when fn succeeds or ctx is cancelled. The last error from
// fn is returned when all attempts fail.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		if attempt == maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return err
}
