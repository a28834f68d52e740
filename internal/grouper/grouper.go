// Package grouper collapses due watch tasks into per-query fetch units.
package grouper

import (
	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/monitor"
)

// Group is one fetch unit: a canonical search query plus every task that
// subscribed to it this cycle.
type Group struct {
	Query monitor.SearchQuery
	Tasks []monitor.WatchTask
}

// Grouper is a pure transform from due tasks to fetch groups.
type Grouper struct {
	blocklist *monitor.Blocklist
	logger    *zap.Logger
}

// New creates a Grouper. The blocklist may be nil.
func New(blocklist *monitor.Blocklist, logger *zap.Logger) *Grouper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Grouper{blocklist: blocklist, logger: logger}
}

// Group maps tasks onto fetch units. Two tasks share a unit iff their
// canonical URLs are byte-equal; a unit with zero tasks is never produced.
// Tasks with unparseable URLs or blocked hosts are skipped, not failed:
// they will be retried next cycle once fixed or unblocked. Group order
// follows first appearance, so output is deterministic for a given input.
func (g *Grouper) Group(tasks []monitor.WatchTask) []Group {
	byCanonical := make(map[string]int)
	groups := make([]Group, 0, len(tasks))

	for _, task := range tasks {
		if !task.Active {
			continue
		}
		query, err := monitor.NormalizeSearchURL(task.URL)
		if err != nil {
			g.logger.Warn("skipping task with invalid url",
				zap.Int64("task_id", task.ID),
				zap.String("url", task.URL),
				zap.Error(err),
			)
			continue
		}
		if g.blocklist.IsBlocked(query.Host) {
			g.logger.Info("skipping task on blocked source",
				zap.Int64("task_id", task.ID),
				zap.String("host", query.Host),
			)
			continue
		}

		idx, ok := byCanonical[query.Canonical]
		if !ok {
			idx = len(groups)
			byCanonical[query.Canonical] = idx
			groups = append(groups, Group{Query: query})
		}
		groups[idx].Tasks = append(groups[idx].Tasks, task)
	}

	return groups
}
