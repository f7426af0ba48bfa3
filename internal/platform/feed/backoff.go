package feed

import (
	"context"
	"time"
)

// Backoff spaces out retries of a failing watch. The delay doubles per consecutive
// failure up to Max and resets after a success.
type Backoff struct {
	Base     time.Duration
	Max      time.Duration
	Failures uint
}

// Next records a failure and returns how long to wait before retrying.
func (b *Backoff) Next() time.Duration {
	b.Failures++
	base := b.Base
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	d := base
	for i := uint(1); i < b.Failures; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Reset clears the failure streak.
func (b *Backoff) Reset() {
	b.Failures = 0
}

// Sleep waits for d or until ctx is done. It reports false when ctx ended first.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
