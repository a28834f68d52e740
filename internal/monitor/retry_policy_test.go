package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(3, 10*time.Millisecond, 100*time.Millisecond)

	require.False(t, p.ShouldRetry(nil, 0))
	require.False(t, p.ShouldRetry(errors.New("boom"), 3), "attempt cap reached")
	require.False(t, p.ShouldRetry(context.Canceled, 0))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 0))

	transient := &StoreError{Op: "submit-items", StatusCode: 503}
	require.True(t, p.ShouldRetry(transient, 0))

	rejected := &StoreError{Op: "submit-items", StatusCode: 422}
	require.False(t, p.ShouldRetry(rejected, 0), "4xx is never retried")

	network := &StoreError{Op: "submit-items", Err: errors.New("connection reset")}
	require.True(t, p.ShouldRetry(network, 1))
}

func TestExponentialRetryPolicyBackoffIsBoundedAndNonDecreasing(t *testing.T) {
	t.Parallel()

	p := NewRetryPolicy(5, 20*time.Millisecond, 200*time.Millisecond)

	var prevFloor time.Duration
	for attempt := 0; attempt < 5; attempt++ {
		d := p.Backoff(attempt)
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 200*time.Millisecond+200*time.Millisecond/2)

		// The deterministic floor (delay/2) must not decrease between attempts.
		det := deterministicHalf(p, attempt)
		require.GreaterOrEqual(t, det, prevFloor)
		prevFloor = det
	}
}

func deterministicHalf(p *ExponentialRetryPolicy, attempt int) time.Duration {
	delay := float64(p.baseDelay) * pow2(attempt)
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay / 2)
}

func pow2(n int) float64 {
	out := 1.0
	for i := 0; i < n; i++ {
		out *= 2
	}
	return out
}
