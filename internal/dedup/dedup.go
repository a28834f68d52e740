// Package dedup filters freshly extracted listings against per-task
// seen-permalink sets.
package dedup

import (
	"github.com/flatwatch/scraper/internal/monitor"
)

// Filter returns the listings whose permalinks are absent from seen.
// Dedup identity is the (task, permalink) pair: seen is always the seen-set
// of a single task, so two tasks on the same query can receive different
// slices of the same extraction. Input order is preserved; a permalink
// appearing twice in items is delivered once.
func Filter(items []monitor.Listing, seen map[string]struct{}) []monitor.Listing {
	fresh := make([]monitor.Listing, 0, len(items))
	emitted := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.Permalink == "" {
			continue
		}
		if _, ok := seen[item.Permalink]; ok {
			continue
		}
		if _, dup := emitted[item.Permalink]; dup {
			continue
		}
		emitted[item.Permalink] = struct{}{}
		fresh = append(fresh, item)
	}
	return fresh
}

// FilterDistricts drops listings whose district does not match the task's
// allowed district ids. Tasks without a district filter keep everything;
// listings the source did not attribute to a district are kept as well, so
// a missing source field never hides an item.
func FilterDistricts(items []monitor.Listing, allowed []int64) []monitor.Listing {
	if len(allowed) == 0 {
		return items
	}
	allowedSet := make(map[int64]struct{}, len(allowed))
	for _, id := range allowed {
		allowedSet[id] = struct{}{}
	}
	kept := make([]monitor.Listing, 0, len(items))
	for _, item := range items {
		if item.DistrictID == nil {
			kept = append(kept, item)
			continue
		}
		if _, ok := allowedSet[*item.DistrictID]; ok {
			kept = append(kept, item)
		}
	}
	return kept
}
