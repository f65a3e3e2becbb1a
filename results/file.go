package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hupe1980/personasim/core"
)

// FileStore writes each result to <dir>/<batch-id>.json. Writes go through a
// temporary file and a rename so readers never observe partial documents.
type FileStore struct {
	mu  sync.RWMutex
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory results are written to.
func (s *FileStore) Dir() string { return s.dir }

// Save implements Store.
func (s *FileStore) Save(_ context.Context, r *core.BatchResult) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("batch result id is required")
	}
	if !validID(r.ID) {
		return fmt.Errorf("invalid batch result id %q", r.ID)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding batch result: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, r.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing batch result: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing batch result: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing batch result: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(r.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing batch result: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *FileStore) Get(_ context.Context, id string) (*core.BatchResult, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(s.path(id))
}

// List implements Store.
func (s *FileStore) List(_ context.Context, personaID string) ([]*core.BatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	out := make([]*core.BatchResult, 0, len(files))
	for _, f := range files {
		r, err := s.read(f)
		if err != nil {
			return nil, err
		}
		if personaID == "" || r.PersonaID == personaID {
			out = append(out, r)
		}
	}
	sortResults(out)
	return out, nil
}

func (s *FileStore) read(path string) (*core.BatchResult, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading batch result: %w", err)
	}
	var r core.BatchResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding batch result %s: %w", filepath.Base(path), err)
	}
	return &r, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// validID rejects ids that would escape the results directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}
