package persona

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/personasim/core"
)

// ErrNotFound is returned when a persona id is unknown to the store.
var ErrNotFound = errors.New("persona not found")

// Store provides read access to personas.
type Store interface {
	// Get returns the persona with the given id or ErrNotFound.
	Get(ctx context.Context, id string) (core.Persona, error)
	// List returns the personas matching filter, ordered by id.
	List(ctx context.Context, filter Filter) ([]core.Persona, error)
}

// Importer loads a directory of persona JSON documents into a store,
// skipping ids that already exist, and reports how many were added.
// InMemoryStore and SQLiteStore implement it.
type Importer interface {
	ImportDir(ctx context.Context, dir string) (int, error)
}

// Filter restricts List results. Attributes are compared exactly against the
// persona's template variables, so keys use the normalized names
// (self_identified_country, age_bracket, ...). A zero Limit means no limit.
type Filter struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Limit      int               `json:"limit,omitempty"`
}

// Match reports whether p satisfies every attribute of the filter.
func (f Filter) Match(p core.Persona) bool {
	if len(f.Attributes) == 0 {
		return true
	}
	vars := p.TemplateVars()
	for k, want := range f.Attributes {
		if got, ok := vars[k]; !ok || got != want {
			return false
		}
	}
	return true
}

// apply filters and truncates an id-ordered slice.
func (f Filter) apply(in []core.Persona) []core.Persona {
	out := make([]core.Persona, 0, len(in))
	for _, p := range in {
		if !f.Match(p) {
			continue
		}
		out = append(out, p)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// LoadFile decodes one persona JSON document. When the document carries no
// id, the file name without extension is used.
func LoadFile(path string) (core.Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Persona{}, fmt.Errorf("reading persona %s: %w", path, err)
	}
	var p core.Persona
	if err := json.Unmarshal(data, &p); err != nil {
		return core.Persona{}, fmt.Errorf("decoding persona %s: %w", path, err)
	}
	if p.ID == "" {
		p.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if p.ParticipantID == "" {
		return core.Persona{}, fmt.Errorf("persona %s: participant_id is required", path)
	}
	return p, nil
}

// loadDir decodes every *.json document in dir, ordered by file name.
func loadDir(dir string) ([]core.Persona, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("persona directory: %w", err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	personas := make([]core.Persona, 0, len(files))
	for _, f := range files {
		p, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		personas = append(personas, p)
	}
	return personas, nil
}

func sortByID(ps []core.Persona) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].ID < ps[j].ID })
}
