// Package progress provides the event primitives, non-blocking hub, and
// emitter interface the pipeline uses to report cycle progress. Events are
// batched on a background goroutine and fanned out to pluggable sinks such
// as structured logs, Prometheus metrics, or the status endpoint.
package progress
