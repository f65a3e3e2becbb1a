package results

import (
	"context"
	"errors"
	"sort"

	"github.com/hupe1980/personasim/core"
)

// ErrNotFound is returned when no result exists for a batch id.
var ErrNotFound = errors.New("batch result not found")

// Store persists batch results.
type Store interface {
	// Save stores (or replaces) the result under its id.
	Save(ctx context.Context, r *core.BatchResult) error
	// Get returns the result for id or ErrNotFound.
	Get(ctx context.Context, id string) (*core.BatchResult, error)
	// List returns the results for personaID (all results when empty),
	// oldest first.
	List(ctx context.Context, personaID string) ([]*core.BatchResult, error)
}

// Clone returns a deep copy of r.
func Clone(r *core.BatchResult) *core.BatchResult {
	if r == nil {
		return nil
	}
	c := *r
	c.Goals = append([]core.Goal(nil), r.Goals...)
	c.Sessions = make([]*core.Session, len(r.Sessions))
	for i, s := range r.Sessions {
		if s != nil {
			c.Sessions[i] = s.Clone()
		}
	}
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	return &c
}

func sortResults(rs []*core.BatchResult) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}
