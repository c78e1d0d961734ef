package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitSpacesConsecutiveCalls(t *testing.T) {
	r := NewSimpleRateLimiter(30*time.Millisecond, 30*time.Millisecond)

	require.NoError(t, r.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))

	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestWaitRespectsContext(t *testing.T) {
	r := NewSimpleRateLimiter(5*time.Second, 5*time.Second)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := r.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCalculateDelayStaysInWindow(t *testing.T) {
	r := NewSimpleRateLimiter(100*time.Millisecond, 300*time.Millisecond)

	for i := 0; i < 50; i++ {
		delay := r.calculateDelay()
		assert.GreaterOrEqual(t, delay, 100*time.Millisecond)
		assert.Less(t, delay, 300*time.Millisecond)
	}
}

func TestCalculateDelayWithoutJitterRange(t *testing.T) {
	r := NewSimpleRateLimiter(0, 0)
	assert.Equal(t, time.Duration(0), r.calculateDelay())
}

func TestAdaptiveBackoffAfterErrors(t *testing.T) {
	a := NewAdaptiveRateLimiter(2*time.Second, 4*time.Second)

	for i := 0; i < 3; i++ {
		a.RecordError()
	}

	assert.Equal(t, 3*time.Second, a.minDelay)
	assert.Equal(t, 6*time.Second, a.maxDelay)
}

func TestAdaptiveSuccessResetsErrorStreak(t *testing.T) {
	a := NewAdaptiveRateLimiter(2*time.Second, 4*time.Second)

	a.RecordError()
	a.RecordError()
	a.RecordSuccess()
	a.RecordError()
	a.RecordError()

	// The streak never reached three in a row, so no backoff applied.
	assert.Equal(t, 2*time.Second, a.minDelay)
	assert.Equal(t, 4*time.Second, a.maxDelay)
}

func TestAdaptiveTightensAfterSuccessRun(t *testing.T) {
	a := NewAdaptiveRateLimiter(10*time.Second, 20*time.Second)

	for i := 0; i < 6; i++ {
		a.RecordSuccess()
	}

	assert.Equal(t, 9*time.Second, a.minDelay)
}

func TestAdaptiveBackoffIsCapped(t *testing.T) {
	a := NewAdaptiveRateLimiter(50*time.Second, 110*time.Second)

	for i := 0; i < 9; i++ {
		a.RecordError()
	}

	assert.LessOrEqual(t, a.minDelay, 60*time.Second)
	assert.LessOrEqual(t, a.maxDelay, 120*time.Second)
}
