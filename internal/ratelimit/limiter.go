package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Limiter admits at most maxRequests calls within a sliding time window.
// Acquire blocks the caller until admission would not exceed the bound; it
// never drops. Safe for concurrent use; the lock is released while sleeping so
// waiting callers do not stall each other.
type Limiter struct {
	maxRequests int
	window      time.Duration

	mu       sync.Mutex
	admitted []time.Time

	now func() time.Time
}

// NewLimiter creates a limiter admitting maxRequests per window.
func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Acquire blocks until one more request fits inside the trailing window, then
// records it. Returns early with the context error on cancellation. After a
// sleep the window is re-evaluated from scratch: other callers sharing the
// limiter may have filled it again in the meantime.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := l.now()

		cutoff := now.Add(-l.window)
		kept := l.admitted[:0]
		for _, t := range l.admitted {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		l.admitted = kept

		if len(l.admitted) < l.maxRequests {
			l.admitted = append(l.admitted, now)
			l.mu.Unlock()
			return nil
		}

		sleep := l.window - now.Sub(l.admitted[0])
		l.mu.Unlock()

		if sleep <= 0 {
			continue
		}

		logrus.Debugf("rate limit reached, waiting %.1fs", sleep.Seconds())
		if err := Wait(ctx, sleep); err != nil {
			return err
		}
	}
}

// InWindow returns how many admissions currently sit inside the trailing
// window.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	n := 0
	for _, t := range l.admitted {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// Adaptive couples a Limiter with consecutive-error exponential backoff,
// scoped per source so one failing source does not throttle others.
type Adaptive struct {
	*Limiter

	maxRetries int
	baseDelay  time.Duration

	errMu             sync.Mutex
	consecutiveErrors int
}

// NewAdaptive creates an adaptive limiter. After maxRetries consecutive
// errors HandleError escalates instead of sleeping.
func NewAdaptive(maxRequests int, window time.Duration, maxRetries int, baseDelay time.Duration) *Adaptive {
	return &Adaptive{
		Limiter:    NewLimiter(maxRequests, window),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

// HandleError records one more consecutive failure. While the count stays
// within maxRetries it sleeps baseDelay*2^(n-1) and returns nil, meaning the
// caller may try again. Past the ceiling the error is escalated back to the
// caller instead of being retried further.
func (a *Adaptive) HandleError(ctx context.Context, cause error) error {
	a.errMu.Lock()
	a.consecutiveErrors++
	n := a.consecutiveErrors
	a.errMu.Unlock()

	if n > a.maxRetries {
		logrus.Errorf("retry budget exhausted (%d attempts), last error: %v", a.maxRetries, cause)
		return fmt.Errorf("%d consecutive errors exceeds limit of %d: %w", n, a.maxRetries, cause)
	}

	delay := a.backoffDelay(n)
	logrus.Warnf("error #%d: %v, retrying in %.1fs", n, cause, delay.Seconds())
	return Wait(ctx, delay)
}

// ResetErrors clears the consecutive-error counter after a successful fetch.
func (a *Adaptive) ResetErrors() {
	a.errMu.Lock()
	defer a.errMu.Unlock()

	if a.consecutiveErrors > 0 {
		logrus.Debug("error counter reset after successful request")
		a.consecutiveErrors = 0
	}
}

// ConsecutiveErrors returns the current failure streak.
func (a *Adaptive) ConsecutiveErrors() int {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	return a.consecutiveErrors
}

func (a *Adaptive) backoffDelay(n int) time.Duration {
	return a.baseDelay << uint(n-1)
}

// Wait sleeps for d or until ctx is cancelled, whichever comes first.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
