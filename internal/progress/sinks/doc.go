// Package sinks provides the built-in progress sinks: structured logs,
// Prometheus collectors, and the in-memory status snapshot served by the
// ops API.
package sinks
