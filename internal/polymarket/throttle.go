package polymarket

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum delay between consecutive API requests. It
// carries the time of the last request explicitly instead of relying on a
// package-level timer.
type Throttle struct {
	mu    sync.Mutex
	delay time.Duration
	last  time.Time
	now   func() time.Time
}

// NewThrottle creates a throttle with the given inter-request delay. A zero
// or negative delay disables waiting.
func NewThrottle(delay time.Duration) *Throttle {
	return &Throttle{
		delay: delay,
		now:   time.Now,
	}
}

// Wait blocks until the configured delay has elapsed since the previous
// request, then records the current time as the new last-request time. It
// returns early with the context's error on cancellation.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil || t.delay <= 0 {
		return ctx.Err()
	}

	t.mu.Lock()
	remaining := t.delay - t.now().Sub(t.last)
	if remaining <= 0 {
		t.last = t.now()
		t.mu.Unlock()
		return ctx.Err()
	}
	t.mu.Unlock()

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	t.mu.Lock()
	t.last = t.now()
	t.mu.Unlock()
	return nil
}
