package persona

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/personasim/core"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS personas (
	id                 TEXT PRIMARY KEY,
	participant_id     TEXT NOT NULL,
	response_language  TEXT NOT NULL,
	high_level_ai_view TEXT NOT NULL,
	demographic_info   TEXT NOT NULL,
	survey_responses   TEXT NOT NULL,
	created_at         TEXT NOT NULL,
	updated_at         TEXT NOT NULL
)`

// SQLiteStore persists personas in a SQLite database. Demographics and survey
// responses are stored as JSON text columns.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

var (
	_ Store    = (*SQLiteStore)(nil)
	_ Importer = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (or creates) the database at path and initializes the
// schema. Use ":memory:" for a throwaway database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, id string) (core.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, participant_id, response_language, high_level_ai_view, demographic_info, survey_responses
		FROM personas WHERE id = ?`, id)
	p, err := scanPersona(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Persona{}, ErrNotFound
	}
	if err != nil {
		return core.Persona{}, fmt.Errorf("failed to get persona %s: %w", id, err)
	}
	return p, nil
}

// List implements Store. Attribute filtering happens after decoding because
// demographic keys are normalized on the Go side.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]core.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, participant_id, response_language, high_level_ai_view, demographic_info, survey_responses
		FROM personas ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	defer rows.Close()

	var all []core.Persona
	for rows.Next() {
		p, err := scanPersona(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan persona: %w", err)
		}
		all = append(all, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return filter.apply(all), nil
}

// Put inserts or replaces a persona.
func (s *SQLiteStore) Put(ctx context.Context, p core.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsert(ctx, s.db, p)
}

// Delete removes a persona or returns ErrNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM personas WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete persona %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ImportDir loads every *.json persona document in dir inside one
// transaction. The persona id is the file name without extension unless the
// document carries one; ids already stored are skipped. It returns the number
// of personas added.
func (s *SQLiteStore) ImportDir(ctx context.Context, dir string) (int, error) {
	ps, err := loadDir(dir)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	n := 0
	for _, p := range ps {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM personas WHERE id = ?`, p.ID).Scan(&exists); err != nil {
			return 0, fmt.Errorf("failed to check persona %s: %w", p.ID, err)
		}
		if exists > 0 {
			continue
		}
		if err := s.upsert(ctx, tx, p); err != nil {
			return 0, err
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) upsert(ctx context.Context, db execer, p core.Persona) error {
	if p.ID == "" {
		return fmt.Errorf("persona ID is required")
	}
	demographics, err := json.Marshal(orEmpty(p.Demographics))
	if err != nil {
		return fmt.Errorf("failed to encode demographics: %w", err)
	}
	survey, err := json.Marshal(orEmpty(p.SurveyResponses))
	if err != nil {
		return fmt.Errorf("failed to encode survey responses: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = db.ExecContext(ctx, `
		INSERT INTO personas (id, participant_id, response_language, high_level_ai_view, demographic_info, survey_responses, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			participant_id = excluded.participant_id,
			response_language = excluded.response_language,
			high_level_ai_view = excluded.high_level_ai_view,
			demographic_info = excluded.demographic_info,
			survey_responses = excluded.survey_responses,
			updated_at = excluded.updated_at`,
		p.ID, p.ParticipantID, p.ResponseLanguage, p.HighLevelAIView, string(demographics), string(survey), now, now)
	if err != nil {
		return fmt.Errorf("failed to store persona %s: %w", p.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPersona(row scanner) (core.Persona, error) {
	var (
		p                    core.Persona
		demographics, survey string
	)
	if err := row.Scan(&p.ID, &p.ParticipantID, &p.ResponseLanguage, &p.HighLevelAIView, &demographics, &survey); err != nil {
		return core.Persona{}, err
	}
	if err := json.Unmarshal([]byte(demographics), &p.Demographics); err != nil {
		return core.Persona{}, fmt.Errorf("decoding demographic_info: %w", err)
	}
	if err := json.Unmarshal([]byte(survey), &p.SurveyResponses); err != nil {
		return core.Persona{}, fmt.Errorf("decoding survey_responses: %w", err)
	}
	return p, nil
}

func orEmpty[M ~map[string]V, V any](m M) M {
	if m == nil {
		return M{}
	}
	return m
}
