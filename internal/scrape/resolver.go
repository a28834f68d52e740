package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/monitor"
)

// maxStrategyAttempts caps attempts within one strategy. Only transient
// failures (timeouts, network errors) are retried; shape failures fall
// through to the next strategy immediately.
const maxStrategyAttempts = 2

// Resolver runs the extraction ladder for one search query: structured
// first, HTML fallback second, hard failure last. It remembers the
// document hash and normalized listings of the previous successful
// extraction per query; an unchanged search page skips re-normalization
// and replays the cached listings, so delivery and persistence still run.
type Resolver struct {
	registry *Registry
	hasher   monitor.Hasher
	logger   *zap.Logger

	mu   sync.Mutex
	docs map[string]docCache
}

// docCache is the per-query result of the last successful extraction.
type docCache struct {
	digest  string
	items   []monitor.Listing
	skipped int
}

// NewResolver builds a Resolver. hasher may be nil, which disables the
// unchanged-document short circuit.
func NewResolver(registry *Registry, hasher monitor.Hasher, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		registry: registry,
		hasher:   hasher,
		logger:   logger,
		docs:     make(map[string]docCache),
	}
}

// Resolve extracts listings for one query. The returned outcome always
// carries the winning strategy (or the last one tried), the total attempt
// count, and on failure the offending raw document for snapshotting.
func (r *Resolver) Resolve(ctx context.Context, query monitor.SearchQuery) monitor.GroupOutcome {
	outcome := monitor.GroupOutcome{Query: query}

	pair, ok := r.registry.Lookup(query.Host)
	if !ok {
		outcome.Failure = monitor.NewScrapeError(
			monitor.FailureNotAvailable, monitor.StrategyStructured, query.Canonical,
			fmt.Errorf("no strategies registered for host %q", query.Host))
		return outcome
	}

	ladder := make([]monitor.Strategy, 0, 2)
	if pair.Structured != nil {
		ladder = append(ladder, pair.Structured)
	}
	if pair.HTML != nil {
		ladder = append(ladder, pair.HTML)
	}

	var (
		lastErr  *monitor.ScrapeError
		lastBody []byte
	)
	for _, strategy := range ladder {
		raw, body, err := r.runStrategy(ctx, strategy, query, &outcome.Attempts)
		if err == nil {
			outcome.Strategy = strategy.Kind()
			r.finishSuccess(&outcome, raw, body)
			return outcome
		}

		outcome.Strategy = strategy.Kind()
		if !errors.As(err, &lastErr) {
			// strategies always return *ScrapeError; guard anyway
			lastErr = monitor.NewScrapeError(
				monitor.FailureNetwork, strategy.Kind(), query.Canonical, err)
		}
		if body != nil {
			lastBody = body
		}
		r.logger.Debug("strategy failed, moving down the ladder",
			zap.String("query", query.Canonical),
			zap.String("strategy", string(strategy.Kind())),
			zap.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}

	outcome.Failure = lastErr
	outcome.FailureBody = lastBody
	return outcome
}

// runStrategy executes one strategy with its in-strategy retry budget.
func (r *Resolver) runStrategy(
	ctx context.Context,
	strategy monitor.Strategy,
	query monitor.SearchQuery,
	attempts *int,
) ([]monitor.RawItem, []byte, error) {
	var (
		raw  []monitor.RawItem
		body []byte
		err  error
	)
	for try := 1; try <= maxStrategyAttempts; try++ {
		*attempts++
		raw, body, err = strategy.Extract(ctx, query)
		if err == nil {
			return raw, body, nil
		}
		class, ok := monitor.ClassOf(err)
		if !ok || !class.RetryableWithinStrategy() {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, body, err
}

// finishSuccess normalizes the raw items and applies the document hash
// short circuit to the outcome. An unchanged document replays the cached
// listings rather than dropping them: items a task has not persisted yet
// (a soft-failed batch, a subscription added between cycles) must stay
// candidates, and per-task dedup keeps replays silent for everyone else.
func (r *Resolver) finishSuccess(outcome *monitor.GroupOutcome, raw []monitor.RawItem, body []byte) {
	var digest string
	if r.hasher != nil && len(body) > 0 {
		if d, err := r.hasher.Hash(body); err == nil {
			digest = d
		}
	}

	if digest != "" {
		r.mu.Lock()
		cached, ok := r.docs[outcome.Query.Canonical]
		r.mu.Unlock()
		if ok && cached.digest == digest {
			outcome.DocUnchanged = true
			outcome.Items = cached.items
			outcome.SkippedItems = cached.skipped
			r.logger.Debug("document unchanged since last cycle",
				zap.String("query", outcome.Query.Canonical))
			return
		}
	}

	items, skipped := Normalize(raw)
	outcome.Items = items
	outcome.SkippedItems = skipped
	if digest != "" {
		r.mu.Lock()
		r.docs[outcome.Query.Canonical] = docCache{digest: digest, items: items, skipped: skipped}
		r.mu.Unlock()
	}
}
