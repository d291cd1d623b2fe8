//go:build sqlite

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gpr/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps every record as its JSON codec payload. Genomes also
// carry their run, island and fitness as columns so a run's members can be
// ranked without decoding.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

const schema = `
CREATE TABLE IF NOT EXISTS genomes (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	island INTEGER NOT NULL,
	encoding TEXT NOT NULL,
	fitness REAL NOT NULL,
	payload BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS genomes_by_run ON genomes (run_id, fitness DESC);
CREATE TABLE IF NOT EXISTS populations (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	payload BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	payload BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS fitness_history (
	id TEXT PRIMARY KEY,
	payload BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS generation_diagnostics (
	id TEXT PRIMARY KEY,
	payload BLOB NOT NULL
);`

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return fmt.Errorf("create schema: %w", err)
	}
	s.db = db
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

// upsert writes one row keyed by its first column. table and cols are
// always constants of this file.
func (s *SQLiteStore) upsert(ctx context.Context, table string, cols []string, args ...any) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	updates := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		updates = append(updates, c+" = excluded."+c)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO UPDATE SET %s",
		table,
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "),
		cols[0],
		strings.Join(updates, ", "),
	)
	_, err = db.ExecContext(ctx, query, args...)
	return err
}

func (s *SQLiteStore) payload(ctx context.Context, table, id string) ([]byte, bool, error) {
	db, err := s.conn()
	if err != nil {
		return nil, false, err
	}
	var payload []byte
	err = db.QueryRowContext(ctx, "SELECT payload FROM "+table+" WHERE id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func load[T any](ctx context.Context, s *SQLiteStore, table, id string, decode func([]byte) (T, error)) (T, bool, error) {
	var zero T
	payload, ok, err := s.payload(ctx, table, id)
	if err != nil || !ok {
		return zero, ok, err
	}
	v, err := decode(payload)
	if err != nil {
		return zero, false, fmt.Errorf("decode %s %s: %w", table, id, err)
	}
	return v, true, nil
}

func (s *SQLiteStore) SaveGenome(ctx context.Context, genome model.Genome) error {
	payload, err := EncodeGenome(genome)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "genomes",
		[]string{"id", "run_id", "island", "encoding", "fitness", "payload"},
		genome.ID, genome.RunID, genome.Island, string(genome.Encoding), genome.Fitness, payload)
}

func (s *SQLiteStore) GetGenome(ctx context.Context, id string) (model.Genome, bool, error) {
	return load(ctx, s, "genomes", id, DecodeGenome)
}

func (s *SQLiteStore) ListGenomes(ctx context.Context, q GenomeQuery) ([]model.Genome, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	query := "SELECT id, payload FROM genomes WHERE run_id = ?"
	args := []any{q.RunID}
	if len(q.Islands) > 0 {
		query += " AND island IN (" + strings.TrimSuffix(strings.Repeat("?, ", len(q.Islands)), ", ") + ")"
		for _, island := range q.Islands {
			args = append(args, island)
		}
	}
	query += " ORDER BY fitness DESC, id ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var genomes []model.Genome
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		genome, err := DecodeGenome(payload)
		if err != nil {
			return nil, fmt.Errorf("decode genomes %s: %w", id, err)
		}
		genomes = append(genomes, genome)
	}
	return genomes, rows.Err()
}

func (s *SQLiteStore) SavePopulation(ctx context.Context, population model.Population) error {
	payload, err := EncodePopulation(population)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "populations", []string{"id", "run_id", "payload"}, population.ID, population.RunID, payload)
}

func (s *SQLiteStore) GetPopulation(ctx context.Context, id string) (model.Population, bool, error) {
	return load(ctx, s, "populations", id, DecodePopulation)
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.Run) error {
	payload, err := EncodeRun(run)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "runs", []string{"id", "started_at", "payload"}, run.ID, run.StartedAt.UnixNano(), payload)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (model.Run, bool, error) {
	return load(ctx, s, "runs", id, DecodeRun)
}

// ListRuns returns every run, most recently started first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]model.Run, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, "SELECT id, payload FROM runs ORDER BY started_at DESC, id ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		run, err := DecodeRun(payload)
		if err != nil {
			return nil, fmt.Errorf("decode runs %s: %w", id, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) SaveFitnessHistory(ctx context.Context, runID string, history []model.FitnessHistory) error {
	payload, err := EncodeFitnessHistory(history)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "fitness_history", []string{"id", "payload"}, runID, payload)
}

func (s *SQLiteStore) GetFitnessHistory(ctx context.Context, runID string) ([]model.FitnessHistory, bool, error) {
	return load(ctx, s, "fitness_history", runID, DecodeFitnessHistory)
}

func (s *SQLiteStore) SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	payload, err := EncodeGenerationDiagnostics(diagnostics)
	if err != nil {
		return err
	}
	return s.upsert(ctx, "generation_diagnostics", []string{"id", "payload"}, runID, payload)
}

func (s *SQLiteStore) GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	return load(ctx, s, "generation_diagnostics", runID, DecodeGenerationDiagnostics)
}
