// Package monitor defines the core types and interfaces shared across the
// listing-monitoring pipeline: watch tasks, search queries, listings,
// strategy failure classes, and the contracts the pipeline consumes.
package monitor
