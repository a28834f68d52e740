package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/flatwatch/scraper/internal/progress"
)

// CycleStatus is the aggregated view of the most recent cycles, served by
// the ops API's status endpoint.
type CycleStatus struct {
	CycleID        string     `json:"cycle_id"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Duration       string     `json:"duration,omitempty"`
	GroupsDone     int        `json:"groups_done"`
	GroupsFailed   int        `json:"groups_failed"`
	ItemsExtracted int64      `json:"items_extracted"`
	ItemsSkipped   int64      `json:"items_skipped"`
	ItemsPersisted int64      `json:"items_persisted"`
	Failures       []string   `json:"failures,omitempty"`
}

const maxTrackedFailures = 20

// StatusSink folds the event stream into per-cycle summaries and exposes
// the latest one.
type StatusSink struct {
	mu      sync.Mutex
	current *CycleStatus
	last    *CycleStatus
}

// NewStatusSink creates an empty status sink.
func NewStatusSink() *StatusSink {
	return &StatusSink{}
}

// Consume folds the batch into the cycle summaries.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.fold(evt)
	}
	return nil
}

func (s *StatusSink) fold(evt progress.Event) {
	id := evt.CycleUUID().String()
	if s.current == nil || s.current.CycleID != id {
		if evt.Stage != progress.StageCycleStart {
			// late event for an untracked cycle; count it anyway
			if s.current == nil {
				s.current = &CycleStatus{CycleID: id}
			}
		} else {
			if s.current != nil {
				s.last = s.current
			}
			ts := evt.TS
			s.current = &CycleStatus{CycleID: id, StartedAt: &ts}
			return
		}
	}

	switch evt.Stage {
	case progress.StageCycleDone:
		ts := evt.TS
		s.current.FinishedAt = &ts
		if evt.Dur > 0 {
			s.current.Duration = evt.Dur.String()
		}
		s.last = s.current
	case progress.StageGroupDone:
		s.current.GroupsDone++
		s.current.ItemsExtracted += evt.Items
		s.current.ItemsSkipped += evt.Skipped
	case progress.StageGroupFailed:
		s.current.GroupsFailed++
		if len(s.current.Failures) < maxTrackedFailures {
			s.current.Failures = append(s.current.Failures, evt.Query+": "+evt.Note)
		}
	case progress.StageTaskPersisted:
		s.current.ItemsPersisted += evt.Items
	}
}

// Latest returns the most recently completed cycle summary, or the one in
// flight when nothing has completed yet. The second result is false before
// any events arrive.
func (s *StatusSink) Latest() (CycleStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil {
		return *s.last, true
	}
	if s.current != nil {
		return *s.current, true
	}
	return CycleStatus{}, false
}

// Close implements the Sink interface; it performs no action.
func (s *StatusSink) Close(context.Context) error {
	return nil
}
