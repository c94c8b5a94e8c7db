package provider

import (
	"context"
	"sync"
	"time"
)

// rateLimiter enforces a requests-per-minute budget with a tumbling
// window: the window opens on the first request and resets 60 seconds
// later. A caller that would exceed the budget blocks until the window
// elapses, then proceeds; requests are never rejected outright.
//
// The counter is shared process-wide per gateway, so multiple projects
// translating against the same provider draw from one budget.
type rateLimiter struct {
	mu          sync.Mutex
	budget      int
	window      time.Duration
	windowStart time.Time
	count       int

	// injectable for tests
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	return &rateLimiter{
		budget: requestsPerMinute,
		window: time.Minute,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Wait blocks until the caller may issue a request, counting it against
// the current window. A zero or negative budget disables throttling.
func (l *rateLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.budget <= 0 {
		return nil
	}

	now := l.now()
	if l.count == 0 || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 1
		return nil
	}

	if l.count < l.budget {
		l.count++
		return nil
	}

	// Budget exhausted: block until the window rolls over. Holding the
	// mutex keeps concurrent callers queued behind the shared budget.
	if err := l.sleep(ctx, l.window-now.Sub(l.windowStart)); err != nil {
		return err
	}
	l.windowStart = l.now()
	l.count = 1
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
