// Package memory provides an in-memory ArtifactStore for tests and for
// runs with artifact snapshots disabled.
package memory

import (
	"context"
	"sync"
)

// Artifact is one saved failure snapshot.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Store keeps artifacts in memory.
type Store struct {
	mu    sync.Mutex
	saved []Artifact
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Save records the artifact and returns a mem:// URI.
func (s *Store) Save(_ context.Context, name, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, Artifact{
		Name:        name,
		ContentType: contentType,
		Data:        append([]byte(nil), data...),
	})
	return "mem://" + name, nil
}

// Saved returns a copy of every artifact saved so far.
func (s *Store) Saved() []Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Artifact(nil), s.saved...)
}
