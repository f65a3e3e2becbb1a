package results

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/personasim/core"
)

// InMemoryStore keeps results in a process local map guarded by an RWMutex.
// Results are cloned on save and retrieval so callers never share sessions
// with the store.
type InMemoryStore struct {
	mu      sync.RWMutex
	results map[string]*core.BatchResult
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{results: make(map[string]*core.BatchResult)}
}

// Save implements Store.
func (s *InMemoryStore) Save(_ context.Context, r *core.BatchResult) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("batch result id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.ID] = Clone(r)
	return nil
}

// Get implements Store.
func (s *InMemoryStore) Get(_ context.Context, id string) (*core.BatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return nil, ErrNotFound
	}
	return Clone(r), nil
}

// List implements Store.
func (s *InMemoryStore) List(_ context.Context, personaID string) ([]*core.BatchResult, error) {
	s.mu.RLock()
	out := make([]*core.BatchResult, 0, len(s.results))
	for _, r := range s.results {
		if personaID == "" || r.PersonaID == personaID {
			out = append(out, Clone(r))
		}
	}
	s.mu.RUnlock()
	sortResults(out)
	return out, nil
}
