package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitAllowsBurstThenDelays(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 50, DefaultBurst: 2})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://www.olx.pl/a"))
	require.NoError(t, l.Wait(ctx, "https://www.olx.pl/b"))
	require.Less(t, time.Since(start), 15*time.Millisecond, "burst should not block")

	require.NoError(t, l.Wait(ctx, "https://www.olx.pl/c"))
	require.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond, "third token needs a refill")
}

func TestWaitIsPerDomain(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://www.olx.pl/x"))
	require.NoError(t, l.Wait(ctx, "https://re.kufar.by/x"))
	require.Less(t, time.Since(start), 100*time.Millisecond, "different domains must not share buckets")
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.1, DefaultBurst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Wait(ctx, "https://www.olx.pl/x"))
	err := l.Wait(ctx, "https://www.olx.pl/y")
	require.Error(t, err)
}

func TestZeroRPSDisablesLimiting(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(ctx, "https://www.olx.pl/x"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}
