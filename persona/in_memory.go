package persona

import (
	"context"
	"sync"

	"github.com/hupe1980/personasim/core"
)

// InMemoryStore keeps personas in a process local map. It is safe for
// concurrent access. Personas are cloned on the way in and out so callers
// cannot mutate stored state.
type InMemoryStore struct {
	mu       sync.RWMutex
	personas map[string]core.Persona
}

var (
	_ Store    = (*InMemoryStore)(nil)
	_ Importer = (*InMemoryStore)(nil)
)

// NewInMemoryStore returns a store seeded with ps.
func NewInMemoryStore(ps ...core.Persona) *InMemoryStore {
	s := &InMemoryStore{personas: make(map[string]core.Persona, len(ps))}
	for _, p := range ps {
		s.personas[p.ID] = p.Clone()
	}
	return s
}

// Get implements Store.
func (s *InMemoryStore) Get(_ context.Context, id string) (core.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.personas[id]
	if !ok {
		return core.Persona{}, ErrNotFound
	}
	return p.Clone(), nil
}

// List implements Store.
func (s *InMemoryStore) List(_ context.Context, filter Filter) ([]core.Persona, error) {
	s.mu.RLock()
	all := make([]core.Persona, 0, len(s.personas))
	for _, p := range s.personas {
		all = append(all, p.Clone())
	}
	s.mu.RUnlock()
	sortByID(all)
	return filter.apply(all), nil
}

// Put stores (or replaces) a persona.
func (s *InMemoryStore) Put(_ context.Context, p core.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personas[p.ID] = p.Clone()
	return nil
}

// Delete removes a persona. Deleting an unknown id returns ErrNotFound.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.personas[id]; !ok {
		return ErrNotFound
	}
	delete(s.personas, id)
	return nil
}

// ImportDir loads every persona document in dir, skipping ids already
// present, and returns how many were added.
func (s *InMemoryStore) ImportDir(_ context.Context, dir string) (int, error) {
	ps, err := loadDir(dir)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range ps {
		if _, ok := s.personas[p.ID]; ok {
			continue
		}
		s.personas[p.ID] = p
		n++
	}
	return n, nil
}
