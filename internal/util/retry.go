package util

import (
	"context"
	"fmt"
	"time"
)

// Backoff bounds the retries around a flaky call: Attempts tries in total,
// with Base sleep before the second try, doubling after each failure up to
// Cap. A zero Cap leaves the doubling unbounded.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

// DefaultBackoff is the schedule used around remote API calls.
var DefaultBackoff = Backoff{
	Attempts: 3,
	Base:     500 * time.Millisecond,
	Cap:      5 * time.Second,
}

// Retry runs fn under the schedule and returns nil on the first success.
// Once the attempts are exhausted it returns the last error, wrapped with
// the attempt count when more than one try was allowed. Cancellation is
// honored between attempts, never mid-call.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}

	delay := b.Base
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if b.Cap > 0 && delay > b.Cap {
			delay = b.Cap
		}
	}

	if attempts == 1 {
		return err
	}
	return fmt.Errorf("after %d attempts: %w", attempts, err)
}
