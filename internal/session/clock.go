package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Remaining derives the time left until deadline. Always recomputed from the
// absolute deadline, never decremented, so a suspended goroutine or an
// adjusted system clock cannot desynchronize the countdown from the
// authoritative end time.
func Remaining(now, deadline time.Time) time.Duration {
	if remaining := deadline.Sub(now); remaining > 0 {
		return remaining
	}
	return 0
}

// Countdown ticks at a fixed cadence until the deadline passes. Each tick
// reports the freshly derived remaining time; the first tick at zero fires
// onExpire exactly once and stops the loop.
type Countdown struct {
	clock    clockwork.Clock
	deadline time.Time
	interval time.Duration
	onTick   func(remaining time.Duration)
	onExpire func()
}

func NewCountdown(clock clockwork.Clock, deadline time.Time, interval time.Duration, onTick func(time.Duration), onExpire func()) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{
		clock:    clock,
		deadline: deadline,
		interval: interval,
		onTick:   onTick,
		onExpire: onExpire,
	}
}

// Run blocks until the deadline passes or ctx is cancelled.
func (c *Countdown) Run(ctx context.Context) {
	if c.step() {
		return
	}

	ticker := c.clock.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if c.step() {
				return
			}
		}
	}
}

func (c *Countdown) step() bool {
	remaining := Remaining(c.clock.Now(), c.deadline)
	if c.onTick != nil {
		c.onTick(remaining)
	}
	if remaining == 0 {
		if c.onExpire != nil {
			c.onExpire()
		}
		return true
	}
	return false
}
