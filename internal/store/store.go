// Package store provides the SQLite audit trail for enrichment runs.
//
// Every pipeline run, review application, and graph import is recorded
// so that the provenance of any auto-imported relation can be traced
// back to the run and configuration that produced it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is the default audit database location.
const DefaultDBPath = "~/.factgate/audit.db"

// Run is one recorded pipeline run.
type Run struct {
	ID              int64
	RunID           string
	StartedAt       time.Time
	ConfigJSON      string
	CountersJSON    string
	SafeRelations   int
	ReviewEntities  int
	ReviewRelations int
}

// ImportRecord is one recorded graph import pass.
type ImportRecord struct {
	ID        int64
	RunID     string
	DryRun    bool
	Total     int
	Created   int
	Skipped   int
	Errors    int
	CreatedAt time.Time
}

// Store is the audit persistence interface.
type Store interface {
	RecordRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	RecordImport(ctx context.Context, rec *ImportRecord) error
	Close() error
}

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewStore opens (and migrates) the audit database. Pass ":memory:" for
// in-memory databases (testing).
func NewStore(dbPath string) (Store, error) {
	if dbPath == "" {
		dbPath = expandPath(DefaultDBPath)
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	started_at TIMESTAMP NOT NULL,
	config_json TEXT NOT NULL,
	counters_json TEXT NOT NULL,
	safe_relations INTEGER NOT NULL,
	review_entities INTEGER NOT NULL,
	review_relations INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS imports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	dry_run INTEGER NOT NULL,
	total INTEGER NOT NULL,
	created INTEGER NOT NULL,
	skipped INTEGER NOT NULL,
	errors INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_imports_run_id ON imports(run_id);
`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordRun persists one run summary.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_at, config_json, counters_json,
			safe_relations, review_entities, review_relations)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt, run.ConfigJSON, run.CountersJSON,
		run.SafeRelations, run.ReviewEntities, run.ReviewRelations,
	)
	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	run.ID, _ = res.LastInsertId()
	return nil
}

// GetRun loads one run by its run id. Returns sql.ErrNoRows when absent.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, started_at, config_json, counters_json,
			safe_relations, review_entities, review_relations
		FROM runs WHERE run_id = ?`, runID)

	var run Run
	if err := row.Scan(&run.ID, &run.RunID, &run.StartedAt, &run.ConfigJSON,
		&run.CountersJSON, &run.SafeRelations, &run.ReviewEntities, &run.ReviewRelations); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, started_at, config_json, counters_json,
			safe_relations, review_entities, review_relations
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.RunID, &run.StartedAt, &run.ConfigJSON,
			&run.CountersJSON, &run.SafeRelations, &run.ReviewEntities, &run.ReviewRelations); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// RecordImport persists the outcome of one graph import pass.
func (s *SQLiteStore) RecordImport(ctx context.Context, rec *ImportRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO imports (run_id, dry_run, total, created, skipped, errors, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.DryRun, rec.Total, rec.Created, rec.Skipped, rec.Errors, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording import: %w", err)
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

// MarshalJSONField serializes a value for one of the *_json columns.
func MarshalJSONField(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
