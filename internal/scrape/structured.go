package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/flatwatch/scraper/internal/monitor"
)

// ErrStateMissing is returned by a CaptureSpec when the structured payload
// is absent from the response. The resolver maps it to NotAvailable and
// falls back to HTML extraction.
var ErrStateMissing = errors.New("structured state not found in response")

// CaptureSpec describes how to obtain and decode one source's structured
// payload. Sources either expose a search API endpoint (BuildURL rewrites
// the query) or embed prerendered JSON state in the search page itself
// (BuildURL nil, Capture digs the blob out of the HTML).
type CaptureSpec struct {
	BuildURL func(query monitor.SearchQuery) string
	Headers  http.Header
	Capture  func(body []byte) ([]monitor.RawItem, error)
}

// StructuredStrategy extracts listings from a source's structured payload.
// It is the cheaper and more stable path when available; its failures are
// classified so the resolver knows when HTML extraction is worth trying.
type StructuredStrategy struct {
	source  string
	fetcher monitor.Fetcher
	spec    CaptureSpec
	timeout time.Duration
}

// NewStructured builds a StructuredStrategy.
func NewStructured(source string, fetcher monitor.Fetcher, spec CaptureSpec, timeout time.Duration) *StructuredStrategy {
	return &StructuredStrategy{source: source, fetcher: fetcher, spec: spec, timeout: timeout}
}

// Kind identifies the strategy for outcomes and metrics.
func (s *StructuredStrategy) Kind() monitor.StrategyKind {
	return monitor.StrategyStructured
}

// Extract fetches the structured payload and decodes it into raw items.
// Returned errors are always *monitor.ScrapeError with one of the
// structured failure classes.
func (s *StructuredStrategy) Extract(ctx context.Context, query monitor.SearchQuery) ([]monitor.RawItem, []byte, error) {
	target := query.Canonical
	if s.spec.BuildURL != nil {
		if built := s.spec.BuildURL(query); built != "" {
			target = built
		}
	}

	resp, err := s.fetcher.Fetch(ctx, monitor.FetchRequest{
		URL:     target,
		Headers: s.spec.Headers,
		Timeout: s.timeout,
	})
	if err != nil {
		return nil, nil, monitor.NewScrapeError(
			monitor.FailureTimeout, monitor.StrategyStructured, query.Canonical, err)
	}

	if class, bad := classifyStatus(resp.StatusCode); bad {
		return nil, resp.Body, monitor.NewScrapeError(
			class, monitor.StrategyStructured, query.Canonical,
			fmt.Errorf("unexpected status %d from %s", resp.StatusCode, target))
	}

	items, err := s.spec.Capture(resp.Body)
	if err != nil {
		class := monitor.FailureParseError
		if errors.Is(err, ErrStateMissing) {
			class = monitor.FailureNotAvailable
		}
		return nil, resp.Body, monitor.NewScrapeError(
			class, monitor.StrategyStructured, query.Canonical, err)
	}
	return items, resp.Body, nil
}

// classifyStatus maps an HTTP status onto a structured failure class.
// Endpoint-gone statuses mean the structured path is not available for
// this source anymore; server errors are transient and retryable.
func classifyStatus(status int) (monitor.FailureClass, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusNotFound,
		status == http.StatusGone,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusUnavailableForLegalReasons:
		return monitor.FailureNotAvailable, true
	default:
		return monitor.FailureTimeout, true
	}
}
