// Package retry provides a small fixed-backoff retry policy.
package retry

import (
	"context"
	"time"
)

// Policy describes how often an operation is attempted and how long to pause
// between failed attempts. The backoff is fixed, not exponential: for page
// fetches it is deliberately longer than inter-page pacing so transient
// anti-bot blocks have time to clear.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Do runs fn until it succeeds, attempts are exhausted, or ctx is canceled.
// The backoff sleep between attempts is interruptible by ctx. The last error
// is returned when all attempts fail.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-time.After(p.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
