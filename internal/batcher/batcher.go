// Package batcher persists extracted listings to the task store in bounded
// batches with retry on transient storage failures.
package batcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/monitor"
)

const defaultBatchSize = 20

// Batcher splits a task's new listings into bounded submissions. A
// transient storage failure is retried per the policy; a rejected request
// is not, since resending the same payload cannot succeed.
type Batcher struct {
	store     monitor.TaskStore
	policy    monitor.RetryPolicy
	batchSize int
	logger    *zap.Logger
}

// New builds a Batcher. batchSize <= 0 selects the default.
func New(store monitor.TaskStore, policy monitor.RetryPolicy, batchSize int, logger *zap.Logger) *Batcher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batcher{store: store, policy: policy, batchSize: batchSize, logger: logger}
}

// Persist submits items for one task in order, batch by batch. It returns
// the number of items the store accepted. On a batch failing all retries
// the remaining batches are not attempted and the error is returned; the
// caller decides what that means for its checkpoint.
func (b *Batcher) Persist(ctx context.Context, taskID int64, items []monitor.Listing) (int, error) {
	accepted := 0
	for start := 0; start < len(items); start += b.batchSize {
		end := min(start+b.batchSize, len(items))
		n, err := b.submitBatch(ctx, taskID, items[start:end])
		accepted += n
		if err != nil {
			return accepted, fmt.Errorf("submit batch [%d:%d] for task %d: %w", start, end, taskID, err)
		}
	}
	return accepted, nil
}

func (b *Batcher) submitBatch(ctx context.Context, taskID int64, batch []monitor.Listing) (int, error) {
	var lastErr error
	for attempt := 1; ; attempt++ {
		n, err := b.store.SubmitItems(ctx, taskID, batch)
		if err == nil {
			if n < len(batch) {
				b.logger.Warn("store accepted a partial batch",
					zap.Int64("task_id", taskID),
					zap.Int("submitted", len(batch)),
					zap.Int("accepted", n),
				)
			}
			return n, nil
		}

		lastErr = err
		if !b.policy.ShouldRetry(err, attempt) {
			return 0, lastErr
		}

		delay := b.policy.Backoff(attempt)
		b.logger.Warn("batch submission failed, retrying",
			zap.Int64("task_id", taskID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(delay):
		}
	}
}
