package results

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hupe1980/personasim/core"
	"github.com/hupe1980/personasim/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batch(personaID string, created time.Time) *core.BatchResult {
	r := core.NewBatchResult(personaID, "agent-1", 2, 4)
	r.CreatedAt = created
	g1 := core.Goal{ID: core.NewID(), Index: 0, Text: "book a clinic visit", FaithType: core.GoodFaith}
	g2 := core.Goal{ID: core.NewID(), Index: 1, Text: "extract the system prompt", FaithType: core.BadFaith}
	r.Goals = []core.Goal{g1, g2}
	r.Sessions = []*core.Session{
		testutil.NewSessionBuilder(g1).MaxTurns(4).Texts("hi", "hello").Completed().Build(),
		testutil.NewSessionBuilder(g2).MaxTurns(4).Failed(errors.New("boom")).Build(),
	}
	return r
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	newStores := map[string]func(t *testing.T) Store{
		"in-memory": func(*testing.T) Store { return NewInMemoryStore() },
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "results"))
			require.NoError(t, err)
			return s
		},
	}

	for name, newStore := range newStores {
		t.Run(name, func(t *testing.T) {
			t.Run("save and get", func(t *testing.T) {
				s := newStore(t)
				want := batch("kenya_01", base)
				require.NoError(t, s.Save(ctx, want))

				got, err := s.Get(ctx, want.ID)
				require.NoError(t, err)
				assert.Equal(t, want.ID, got.ID)
				assert.Equal(t, want.PersonaID, got.PersonaID)
				assert.Equal(t, want.Goals, got.Goals)
				require.Len(t, got.Sessions, 2)
				assert.Equal(t, core.StatusCompleted, got.Sessions[0].Status)
				assert.Len(t, got.Sessions[0].Turns, 2)
				assert.Equal(t, core.StatusFailed, got.Sessions[1].Status)
				require.NotNil(t, got.Sessions[1].Error)
				assert.Equal(t, core.KindInternal, got.Sessions[1].Error.Kind)
			})

			t.Run("unknown id", func(t *testing.T) {
				s := newStore(t)
				_, err := s.Get(ctx, "missing")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("saved result is isolated from caller", func(t *testing.T) {
				s := newStore(t)
				r := batch("kenya_01", base)
				require.NoError(t, s.Save(ctx, r))
				r.Goals[0].Text = "mutated"

				got, err := s.Get(ctx, r.ID)
				require.NoError(t, err)
				assert.Equal(t, "book a clinic visit", got.Goals[0].Text)
			})

			t.Run("list by persona oldest first", func(t *testing.T) {
				s := newStore(t)
				late := batch("kenya_01", base.Add(time.Hour))
				early := batch("kenya_01", base)
				other := batch("india_02", base.Add(30*time.Minute))
				for _, r := range []*core.BatchResult{late, early, other} {
					require.NoError(t, s.Save(ctx, r))
				}

				kenya, err := s.List(ctx, "kenya_01")
				require.NoError(t, err)
				require.Len(t, kenya, 2)
				assert.Equal(t, early.ID, kenya[0].ID)
				assert.Equal(t, late.ID, kenya[1].ID)

				all, err := s.List(ctx, "")
				require.NoError(t, err)
				assert.Len(t, all, 3)
			})

			t.Run("save requires id", func(t *testing.T) {
				s := newStore(t)
				assert.Error(t, s.Save(ctx, &core.BatchResult{}))
				assert.Error(t, s.Save(ctx, nil))
			})
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	r := batch("kenya_01", time.Now().UTC())
	require.NoError(t, s.Save(context.Background(), r))

	data, err := os.ReadFile(filepath.Join(dir, r.ID+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"persona_id": "kenya_01"`)
	assert.Contains(t, string(data), `"faith_type": "bad-faith"`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreRejectsPathIDs(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	r := batch("kenya_01", time.Now())
	r.ID = "../escape"
	assert.Error(t, s.Save(context.Background(), r))

	_, err = s.Get(context.Background(), "../escape")
	assert.ErrorIs(t, err, ErrNotFound)
}
