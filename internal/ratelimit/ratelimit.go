// package ratelimit throttles outbound Discogs calls based on the quota the
// server reports back, so a run slows itself down before getting banned.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// NormalInterval keeps a run under the 60 requests/minute budget.
	NormalInterval = 1100 * time.Millisecond
	// SlowInterval applies once the reported quota drops to LowThreshold or below.
	SlowInterval = 2 * time.Second
	// PauseInterval applies once the reported quota drops to CriticalThreshold or below.
	PauseInterval = 10 * time.Second

	LowThreshold      = 5
	CriticalThreshold = 2
)

// IntervalFor maps the last observed quota-remaining value to the wait
// interval before the next call. A negative value means the quota is unknown.
// The mapping is a monotone step function of the single latest observation.
func IntervalFor(remaining int) time.Duration {
	switch {
	case remaining < 0:
		return NormalInterval
	case remaining <= CriticalThreshold:
		return PauseInterval
	case remaining <= LowThreshold:
		return SlowInterval
	default:
		return NormalInterval
	}
}

// Limiter serializes outbound API calls. One instance is constructed per run
// and injected into the client; there is no package-level shared state.
//
// The underlying token bucket has burst 1, so Wait blocks until the current
// interval has elapsed since the previous call regardless of caller
// concurrency. Observe retunes the bucket from the latest quota signal.
type Limiter struct {
	mu        sync.Mutex
	remaining int
	limiter   *rate.Limiter
}

// New creates a Limiter in the normal band with the quota unknown.
func New() *Limiter {
	return &Limiter{
		remaining: -1,
		limiter:   rate.NewLimiter(rate.Every(NormalInterval), 1),
	}
}

// Wait blocks until it is safe to issue the next call, or until ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Observe records the server-reported remaining quota and recomputes the
// interval. Only the latest observation matters; no history is kept.
func (l *Limiter) Observe(remaining int) {
	if remaining < 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.remaining = remaining
	l.limiter.SetLimit(rate.Every(IntervalFor(remaining)))
}

// Remaining returns the last observed quota count, or -1 if none seen yet.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}

// Interval returns the wait currently enforced between calls.
func (l *Limiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return IntervalFor(l.remaining)
}
