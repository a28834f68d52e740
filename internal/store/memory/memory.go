// Package memory provides an in-memory TaskStore for development runs and
// tests. It applies the same accept-once permalink semantics the real
// storage service does.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/flatwatch/scraper/internal/monitor"
)

// Store is a concurrency-safe in-memory task store. The error hooks let
// tests inject failures per call.
type Store struct {
	mu          sync.Mutex
	tasks       []monitor.WatchTask
	seen        map[int64]map[string]struct{}
	items       map[int64][]StoredItem
	checkpoints map[int64]monitor.CheckpointUpdate
	cleanups    []int

	// SubmitErr, when set, is consulted before every SubmitItems call.
	SubmitErr func(taskID int64, attempt int) error

	submitCalls map[int64]int
}

// StoredItem is a persisted listing with its ingestion time.
type StoredItem struct {
	Listing monitor.Listing
	AddedAt time.Time
}

// NewStore creates a store pre-loaded with tasks.
func NewStore(tasks ...monitor.WatchTask) *Store {
	return &Store{
		tasks:       tasks,
		seen:        make(map[int64]map[string]struct{}),
		items:       make(map[int64][]StoredItem),
		checkpoints: make(map[int64]monitor.CheckpointUpdate),
		submitCalls: make(map[int64]int),
	}
}

// ListDueTasks returns the active tasks.
func (s *Store) ListDueTasks(_ context.Context) ([]monitor.WatchTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	due := make([]monitor.WatchTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		if task.Active {
			due = append(due, task)
		}
	}
	return due, nil
}

// MarkSeen records permalinks as already delivered for a task.
func (s *Store) MarkSeen(taskID int64, permalinks ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markSeenLocked(taskID, permalinks...)
}

func (s *Store) markSeenLocked(taskID int64, permalinks ...string) {
	set, ok := s.seen[taskID]
	if !ok {
		set = make(map[string]struct{})
		s.seen[taskID] = set
	}
	for _, p := range permalinks {
		set[p] = struct{}{}
	}
}

// SeenPermalinks returns a copy of the task's seen set.
func (s *Store) SeenPermalinks(_ context.Context, taskID int64) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.seen[taskID]))
	for p := range s.seen[taskID] {
		out[p] = struct{}{}
	}
	return out, nil
}

// SubmitItems stores the listings not yet seen for the task and returns
// how many were accepted.
func (s *Store) SubmitItems(_ context.Context, taskID int64, items []monitor.Listing) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submitCalls[taskID]++
	if s.SubmitErr != nil {
		if err := s.SubmitErr(taskID, s.submitCalls[taskID]); err != nil {
			return 0, err
		}
	}

	accepted := 0
	now := time.Now().UTC()
	for _, item := range items {
		if _, dup := s.seen[taskID][item.Permalink]; dup {
			continue
		}
		s.markSeenLocked(taskID, item.Permalink)
		s.items[taskID] = append(s.items[taskID], StoredItem{Listing: item, AddedAt: now})
		accepted++
	}
	return accepted, nil
}

// UpdateCheckpoint records the task's checkpoint.
func (s *Store) UpdateCheckpoint(_ context.Context, taskID int64, update monitor.CheckpointUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.checkpoints[taskID]
	if update.LastChecked != nil {
		current.LastChecked = update.LastChecked
	}
	if update.LastGotItem != nil {
		current.LastGotItem = update.LastGotItem
	}
	s.checkpoints[taskID] = current
	return nil
}

// CleanupOldItems drops stored items older than the given age.
func (s *Store) CleanupOldItems(_ context.Context, olderThanDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanups = append(s.cleanups, olderThanDays)
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	for taskID, stored := range s.items {
		kept := stored[:0]
		for _, item := range stored {
			if item.AddedAt.After(cutoff) {
				kept = append(kept, item)
			}
		}
		s.items[taskID] = kept
	}
	return nil
}

// Items returns the listings stored for a task, in submission order.
func (s *Store) Items(taskID int64) []monitor.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]monitor.Listing, 0, len(s.items[taskID]))
	for _, item := range s.items[taskID] {
		out = append(out, item.Listing)
	}
	return out
}

// Checkpoint returns the task's recorded checkpoint.
func (s *Store) Checkpoint(taskID int64) monitor.CheckpointUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoints[taskID]
}

// Cleanups returns the cleanup requests this store received.
func (s *Store) Cleanups() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.cleanups...)
}

// SubmitCalls reports how many SubmitItems calls a task has received.
func (s *Store) SubmitCalls(taskID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitCalls[taskID]
}
