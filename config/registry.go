package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/personasim/core"
)

// Registry holds agent configurations keyed by id.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]*core.AgentConfig
}

// NewRegistry creates a Registry seeded with cfgs.
func NewRegistry(cfgs ...*core.AgentConfig) *Registry {
	r := &Registry{configs: make(map[string]*core.AgentConfig)}
	for _, c := range cfgs {
		r.Add(c)
	}
	return r
}

// Add registers cfg, replacing any configuration with the same id.
func (r *Registry) Add(cfg *core.AgentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cfg
	r.configs[cfg.ID] = &cp
}

// LoadDir loads every *.yaml / *.yml file in dir and returns the number of
// configurations registered. The first invalid file aborts loading.
func (r *Registry) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, &ConfigError{Path: dir, Err: err}
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		cfg, err := LoadAgentConfig(filepath.Join(dir, e.Name()))
		if err != nil {
			return n, err
		}
		r.Add(cfg)
		n++
	}
	return n, nil
}

// Get returns a copy of the configuration with the given id.
func (r *Registry) Get(id string) (*core.AgentConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *cfg
	return &cp, nil
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
