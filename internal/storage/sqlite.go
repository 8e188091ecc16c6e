package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/models"
)

// SQLiteStore stages records in a local SQLite file.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens or creates the staging database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, gperrors.Storage(err, "failed to create database directory")
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, gperrors.Storage(err, "failed to connect to sqlite")
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, gperrors.Storage(err, "failed to initialize sqlite schema")
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		project TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		payload BLOB NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project, started_at);
	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, project string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Project:   project,
		Status:    RunStatusMining,
		StartedAt: time.Now().UTC(),
	}

	query := `INSERT INTO runs (id, project, status, started_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, run.ID, run.Project, run.Status, run.StartedAt); err != nil {
		return nil, gperrors.Storage(err, "failed to create run")
	}
	return run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID, status string) error {
	query := `UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), runID)
	if err != nil {
		return gperrors.Storage(err, "failed to finish run")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) SaveRecords(ctx context.Context, runID string, records models.RecordSet) error {
	rows, err := encodeRecords(records)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return gperrors.Storage(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	query := `INSERT INTO records (run_id, kind, payload) VALUES (?, ?, ?)`
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, query, runID, row.Kind, row.Payload); err != nil {
			return gperrors.Storage(err, fmt.Sprintf("failed to stage %s record", row.Kind))
		}
	}

	if err := tx.Commit(); err != nil {
		return gperrors.Storage(err, "failed to commit staged records")
	}
	return nil
}

func (s *SQLiteStore) LoadRecords(ctx context.Context, runID string) (models.RecordSet, error) {
	var rows []recordRow
	query := `SELECT kind, payload FROM records WHERE run_id = ? ORDER BY id`
	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return models.RecordSet{}, gperrors.Storage(err, "failed to load staged records")
	}
	return decodeRecords(rows)
}

func (s *SQLiteStore) LatestRun(ctx context.Context, project string) (*Run, error) {
	var run Run
	query := `SELECT * FROM runs WHERE project = ? AND status = ? ORDER BY started_at DESC LIMIT 1`
	err := s.db.GetContext(ctx, &run, query, project, RunStatusComplete)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, gperrors.Storage(err, "failed to query latest run")
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, project string) ([]Run, error) {
	var runs []Run
	query := `SELECT * FROM runs WHERE project = ? ORDER BY started_at DESC`
	if err := s.db.SelectContext(ctx, &runs, query, project); err != nil {
		return nil, gperrors.Storage(err, "failed to list runs")
	}
	return runs, nil
}
