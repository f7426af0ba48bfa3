package crossing

import (
	"context"
	"sync"
	"time"
)

// DefaultCountdownInterval is the tick period of the local ETA countdown.
const DefaultCountdownInterval = time.Second

// Countdown decrements a locally held ETA by one second per tick until it reaches
// zero, is stopped, or is restarted with a fresh authoritative value.
type Countdown struct {
	interval time.Duration
	onTick   func(remaining float64)

	mu        sync.Mutex
	cancel    context.CancelFunc
	remaining float64
	gen       uint64
}

// NewCountdown creates a stopped countdown. onTick runs on the countdown goroutine
// while the countdown is locked, so it must not call back into the Countdown.
func NewCountdown(interval time.Duration, onTick func(remaining float64)) *Countdown {
	if interval <= 0 {
		interval = DefaultCountdownInterval
	}
	if onTick == nil {
		onTick = func(float64) {}
	}
	return &Countdown{interval: interval, onTick: onTick}
}

// Restart cancels any running countdown and starts a new one from eta.
// A non-positive eta only stops the current one.
func (c *Countdown) Restart(eta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.remaining = eta
	if eta <= 0 {
		c.remaining = 0
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.run(ctx, c.gen)
}

// Stop cancels the countdown. No tick is delivered after Stop returns.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.remaining = 0
}

// Remaining returns the current local ETA in seconds.
func (c *Countdown) Remaining() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether a countdown goroutine is active.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Countdown) stopLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Countdown) run(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.remaining--
		if c.remaining < 0 {
			c.remaining = 0
		}
		remaining := c.remaining
		c.onTick(remaining)
		if remaining <= 0 {
			c.stopLocked()
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}
