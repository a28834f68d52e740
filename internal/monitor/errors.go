package monitor

import (
	"errors"
	"fmt"
)

// FailureClass enumerates the typed failures a strategy can report.
type FailureClass string

// Structured strategy failure classes.
const (
	FailureNotAvailable FailureClass = "not_available"
	FailureParseError   FailureClass = "parse_error"
	FailureTimeout      FailureClass = "timeout"
)

// HTML strategy failure classes.
const (
	FailureElementMissing FailureClass = "element_missing"
	FailureFieldParse     FailureClass = "field_parse_error"
	FailureNetwork        FailureClass = "network_error"
)

// RetryableWithinStrategy reports whether a failure class warrants another
// attempt with the same strategy. Shape failures never do: a missing
// element or an unparseable payload will not fix itself on retry, so the
// resolver falls through immediately.
func (c FailureClass) RetryableWithinStrategy() bool {
	return c == FailureTimeout || c == FailureNetwork
}

// ScrapeError is a typed extraction failure carrying the class the resolver
// uses for fallback decisions and the query for diagnostics.
type ScrapeError struct {
	Class    FailureClass
	Strategy StrategyKind
	Query    string
	Err      error
}

// NewScrapeError wraps err with a failure class.
func NewScrapeError(class FailureClass, strategy StrategyKind, query string, err error) *ScrapeError {
	return &ScrapeError{Class: class, Strategy: strategy, Query: query, Err: err}
}

func (e *ScrapeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s strategy failed (%s) for %s", e.Strategy, e.Class, e.Query)
	}
	return fmt.Sprintf("%s strategy failed (%s) for %s: %v", e.Strategy, e.Class, e.Query, e.Err)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// ClassOf extracts the failure class from an error chain.
func ClassOf(err error) (FailureClass, bool) {
	var se *ScrapeError
	if errors.As(err, &se) {
		return se.Class, true
	}
	return "", false
}

// StoreError is returned by TaskStore implementations. A zero StatusCode
// means the request never reached the service (network failure).
type StoreError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *StoreError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("storage %s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the call may be retried under the backoff
// policy. 4xx responses mean the request itself is malformed and retrying
// would re-send the same bad request.
func (e *StoreError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// RetryableStoreError reports whether err is a retryable storage failure.
// Unknown error types are treated as transient.
func RetryableStoreError(err error) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return err != nil
}

// ErrConfiguration marks fatal configuration problems. It is the only
// failure class allowed to terminate the orchestrator.
var ErrConfiguration = errors.New("configuration error")
