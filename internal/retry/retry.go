// Package retry holds the backoff policy applied after failed queue pulls.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Next doubles current, capped at max.
func Next(current, max time.Duration) time.Duration {
	if current <= 0 {
		return max
	}
	if current > max/2 {
		return max
	}
	return current * 2
}

// Backoff tracks the delay to wait after consecutive failures. It starts at
// the initial delay and doubles on each failure up to max. Not safe for
// concurrent use.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff creates a Backoff. A max below initial is raised to initial.
func NewBackoff(initial, max time.Duration) *Backoff {
	if max < initial {
		max = initial
	}
	return &Backoff{initial: initial, max: max, current: initial}
}

// Fail returns the delay to wait for this failure and advances the policy.
func (b *Backoff) Fail() time.Duration {
	delay := b.current
	b.current = Next(b.current, b.max)
	return delay
}

// Reset returns the policy to the initial delay after a success.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Current is the delay the next Fail will return.
func (b *Backoff) Current() time.Duration {
	return b.current
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep cancelled: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
