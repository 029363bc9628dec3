// Package retry implements the single retry policy shared by every
// component that needs bounded retry with backoff.
package retry

import (
	"context"
	"time"

	"framepick/internal/logging"
	"framepick/internal/metrics"
)

// Policy configures bounded retry with exponential backoff.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt. Each
	// subsequent delay doubles, capped at MaxBackoff.
	InitialBackoff time.Duration
	// MaxBackoff caps the per-attempt delay. Zero means no cap.
	MaxBackoff time.Duration
}

// Default returns the policy used for transient per-item failures:
// 3 attempts starting at 50ms.
func Default() Policy {
	return Policy{
		MaxAttempts:    3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// Do runs op until it succeeds, attempts are exhausted, ctx is done, or
// retryable reports an error as permanent. A nil retryable treats every
// error as retryable. The operation label is only used for logs and
// metrics.
func (p Policy) Do(ctx context.Context, operation string, op func() error, retryable func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	backoff := p.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op()
		if err == nil {
			if attempt > 1 {
				logging.Debug("%s succeeded on attempt %d", operation, attempt)
				metrics.RetrySuccess.WithLabelValues(operation).Inc()
			}
			return nil
		}
		lastErr = err

		if retryable != nil && !retryable(err) {
			return err
		}

		// No sleep after the final attempt.
		if attempt < attempts {
			metrics.RetryAttempts.WithLabelValues(operation).Inc()
			logging.Debug("%s failed (attempt %d/%d), retrying in %v: %v",
				operation, attempt, attempts, backoff, err)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}

			backoff *= 2
			if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
				backoff = p.MaxBackoff
			}
		}
	}

	metrics.RetryFailures.WithLabelValues(operation).Inc()
	logging.Warn("%s failed after %d attempts: %v", operation, attempts, lastErr)
	return lastErr
}
