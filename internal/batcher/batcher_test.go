package batcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/monitor"
	"github.com/flatwatch/scraper/internal/store/memory"
)

func listings(n int) []monitor.Listing {
	out := make([]monitor.Listing, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, monitor.Listing{
			Permalink: fmt.Sprintf("https://olx.pl/d/oferta/flat-%d", i),
			Title:     fmt.Sprintf("Flat %d", i),
		})
	}
	return out
}

func fastPolicy(maxAttempts int) monitor.RetryPolicy {
	return monitor.NewRetryPolicy(maxAttempts, time.Millisecond, 2*time.Millisecond)
}

func TestPersistSplitsIntoBatches(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	b := New(store, fastPolicy(3), 20, zap.NewNop())

	accepted, err := b.Persist(context.Background(), 1, listings(45))
	require.NoError(t, err)
	require.Equal(t, 45, accepted)
	require.Equal(t, 3, store.SubmitCalls(1)) // 20 + 20 + 5
	require.Len(t, store.Items(1), 45)
}

func TestPersistRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.SubmitErr = func(_ int64, attempt int) error {
		if attempt == 1 {
			return &monitor.StoreError{Op: "submit items", StatusCode: 503, Err: errors.New("unavailable")}
		}
		return nil
	}
	b := New(store, fastPolicy(3), 20, zap.NewNop())

	accepted, err := b.Persist(context.Background(), 1, listings(5))
	require.NoError(t, err)
	require.Equal(t, 5, accepted)
	require.Equal(t, 2, store.SubmitCalls(1))
}

func TestPersistDoesNotRetryRejectedPayload(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.SubmitErr = func(int64, int) error {
		return &monitor.StoreError{Op: "submit items", StatusCode: 422, Err: errors.New("rejected")}
	}
	b := New(store, fastPolicy(3), 20, zap.NewNop())

	accepted, err := b.Persist(context.Background(), 1, listings(5))
	require.Error(t, err)
	require.Zero(t, accepted)
	require.Equal(t, 1, store.SubmitCalls(1))
}

func TestPersistStopsAfterExhaustedRetries(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.SubmitErr = func(_ int64, attempt int) error {
		// first batch succeeds, second never does
		if attempt == 1 {
			return nil
		}
		return &monitor.StoreError{Op: "submit items", StatusCode: 500, Err: errors.New("boom")}
	}
	b := New(store, fastPolicy(3), 10, zap.NewNop())

	accepted, err := b.Persist(context.Background(), 1, listings(25))
	require.Error(t, err)
	require.Equal(t, 10, accepted)
	require.Equal(t, 4, store.SubmitCalls(1)) // 1 success + 3 failed attempts
}

func TestPersistHonorsContextDuringBackoff(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	store.SubmitErr = func(int64, int) error {
		return &monitor.StoreError{Op: "submit items", StatusCode: 500, Err: errors.New("boom")}
	}
	b := New(store, monitor.NewRetryPolicy(5, time.Minute, time.Minute), 20, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := b.Persist(ctx, 1, listings(5))
	require.ErrorIs(t, err, context.Canceled)
}
