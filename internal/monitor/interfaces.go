package monitor

import (
	"context"
	"time"
)

// TaskStore is the narrow contract to the external storage service. All
// calls are network requests subject to transient failure; implementations
// must return *StoreError so callers can distinguish retryable failures
// from rejected requests.
type TaskStore interface {
	ListDueTasks(ctx context.Context) ([]WatchTask, error)
	SeenPermalinks(ctx context.Context, taskID int64) (map[string]struct{}, error)
	SubmitItems(ctx context.Context, taskID int64, items []Listing) (int, error)
	UpdateCheckpoint(ctx context.Context, taskID int64, update CheckpointUpdate) error
	CleanupOldItems(ctx context.Context, olderThanDays int) error
}

// Fetcher performs a single retrieval for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Strategy turns a search query into raw items or fails with a *ScrapeError.
type Strategy interface {
	Kind() StrategyKind
	Extract(ctx context.Context, query SearchQuery) ([]RawItem, []byte, error)
}

// Enricher optionally rewrites a listing description. Implementations must
// bound their own latency; callers treat any error as "use the original".
type Enricher interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Publisher pushes new-item events for the downstream notifier.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// ArtifactStore persists raw failure artifacts (offending documents) and
// returns a URI for the diagnostics log.
type ArtifactStore interface {
	Save(ctx context.Context, name string, contentType string, data []byte) (string, error)
}

// RetryPolicy governs persistence retries.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Hasher computes digests for the unchanged-document short-circuit.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (swappable in tests).
type Clock interface {
	Now() time.Time
}
