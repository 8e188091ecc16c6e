package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/models"
)

// PostgresStore stages records in PostgreSQL for shared deployments.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to the staging database.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, gperrors.Storage(err, "failed to connect to postgres")
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &PostgresStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, gperrors.Storage(err, "failed to initialize postgres schema")
	}
	return store, nil
}

func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		project TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	);

	CREATE TABLE IF NOT EXISTS records (
		id BIGSERIAL PRIMARY KEY,
		run_id UUID NOT NULL REFERENCES runs(id),
		kind TEXT NOT NULL,
		payload JSONB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project, started_at);
	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateRun(ctx context.Context, project string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Project:   project,
		Status:    RunStatusMining,
		StartedAt: time.Now().UTC(),
	}

	query := `INSERT INTO runs (id, project, status, started_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.ExecContext(ctx, query, run.ID, run.Project, run.Status, run.StartedAt); err != nil {
		return nil, gperrors.Storage(err, "failed to create run")
	}
	return run, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID, status string) error {
	query := `UPDATE runs SET status = $1, finished_at = $2 WHERE id = $3`
	res, err := s.db.ExecContext(ctx, query, status, time.Now().UTC(), runID)
	if err != nil {
		return gperrors.Storage(err, "failed to finish run")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SaveRecords(ctx context.Context, runID string, records models.RecordSet) error {
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

	query := `INSERT INTO records (run_id, kind, payload) VALUES ($1, $2, $3)`
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

func (s *PostgresStore) LoadRecords(ctx context.Context, runID string) (models.RecordSet, error) {
	var rows []recordRow
	query := `SELECT kind, payload FROM records WHERE run_id = $1 ORDER BY id`
	if err := s.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return models.RecordSet{}, gperrors.Storage(err, "failed to load staged records")
	}
	return decodeRecords(rows)
}

func (s *PostgresStore) LatestRun(ctx context.Context, project string) (*Run, error) {
	var run Run
	query := `SELECT * FROM runs WHERE project = $1 AND status = $2 ORDER BY started_at DESC LIMIT 1`
	err := s.db.GetContext(ctx, &run, query, project, RunStatusComplete)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, gperrors.Storage(err, "failed to query latest run")
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, project string) ([]Run, error) {
	var runs []Run
	query := `SELECT * FROM runs WHERE project = $1 ORDER BY started_at DESC`
	if err := s.db.SelectContext(ctx, &runs, query, project); err != nil {
		return nil, gperrors.Storage(err, "failed to list runs")
	}
	return runs, nil
}
