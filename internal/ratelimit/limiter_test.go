package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_WindowBound(t *testing.T) {
	const maxRequests = 3
	window := 150 * time.Millisecond

	limiter := NewLimiter(maxRequests, window)
	ctx := context.Background()

	var admissions []time.Time
	for i := 0; i < 8; i++ {
		require.NoError(t, limiter.Acquire(ctx))
		admissions = append(admissions, time.Now())
	}

	// No trailing window may contain more than maxRequests admissions: the
	// (i+maxRequests)-th admission must be at least one window after the i-th.
	for i := 0; i+maxRequests < len(admissions); i++ {
		gap := admissions[i+maxRequests].Sub(admissions[i])
		assert.GreaterOrEqual(t, gap, window-10*time.Millisecond,
			"admissions %d and %d are too close", i, i+maxRequests)
	}
}

func TestLimiter_DoesNotBlockUnderBound(t *testing.T) {
	limiter := NewLimiter(10, time.Minute)

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, limiter.Acquire(context.Background()))
	}

	assert.Less(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 10, limiter.InWindow())
}

func TestLimiter_AcquireCancelled(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAdaptive_BackoffGrowth(t *testing.T) {
	adaptive := NewAdaptive(100, time.Minute, 10, time.Second)

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{attempt: 1, expected: time.Second},
		{attempt: 2, expected: 2 * time.Second},
		{attempt: 3, expected: 4 * time.Second},
		{attempt: 4, expected: 8 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, adaptive.backoffDelay(tt.attempt))
	}
}

func TestAdaptive_HandleErrorSleepsThenAllowsRetry(t *testing.T) {
	adaptive := NewAdaptive(100, time.Minute, 5, 20*time.Millisecond)
	cause := errors.New("connection reset")

	start := time.Now()
	require.NoError(t, adaptive.HandleError(context.Background(), cause))
	first := time.Since(start)

	start = time.Now()
	require.NoError(t, adaptive.HandleError(context.Background(), cause))
	second := time.Since(start)

	assert.GreaterOrEqual(t, first, 20*time.Millisecond)
	assert.GreaterOrEqual(t, second, 40*time.Millisecond)
	assert.Equal(t, 2, adaptive.ConsecutiveErrors())
}

func TestAdaptive_CeilingEscalates(t *testing.T) {
	adaptive := NewAdaptive(100, time.Minute, 2, time.Millisecond)
	cause := errors.New("boom")
	ctx := context.Background()

	require.NoError(t, adaptive.HandleError(ctx, cause))
	require.NoError(t, adaptive.HandleError(ctx, cause))

	err := adaptive.HandleError(ctx, cause)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	// The counter keeps escalating, it is not reset by the failure.
	assert.Equal(t, 3, adaptive.ConsecutiveErrors())
}

func TestAdaptive_ResetErrors(t *testing.T) {
	adaptive := NewAdaptive(100, time.Minute, 5, time.Millisecond)

	require.NoError(t, adaptive.HandleError(context.Background(), errors.New("boom")))
	assert.Equal(t, 1, adaptive.ConsecutiveErrors())

	adaptive.ResetErrors()
	assert.Equal(t, 0, adaptive.ConsecutiveErrors())
}

func TestAdaptive_HandleErrorCancelled(t *testing.T) {
	adaptive := NewAdaptive(100, time.Minute, 5, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := adaptive.HandleError(ctx, errors.New("boom"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWait(t *testing.T) {
	start := time.Now()
	require.NoError(t, Wait(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	assert.NoError(t, Wait(context.Background(), 0))
}
