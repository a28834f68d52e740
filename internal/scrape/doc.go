// Package scrape implements listing extraction: the structured and HTML
// strategies, the per-source registry, and the resolver that drives the
// structured-first, HTML-fallback state machine for each search query.
package scrape
