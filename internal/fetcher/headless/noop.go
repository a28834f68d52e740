package headless

import (
	"context"
	"errors"

	"github.com/flatwatch/scraper/internal/monitor"
)

// ErrNotConfigured is returned by the Noop fetcher; callers treat it as
// "no escalation available" and keep the plain fetch result.
var ErrNotConfigured = errors.New("headless fetcher not configured")

// Noop implements monitor.Fetcher but always fails, for builds and
// deployments without a browser.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// Fetch returns ErrNotConfigured.
func (Noop) Fetch(_ context.Context, _ monitor.FetchRequest) (monitor.FetchResponse, error) {
	return monitor.FetchResponse{}, ErrNotConfigured
}
