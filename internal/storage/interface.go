// Package storage stages mined records between extraction and graph
// assembly. A run groups everything mined in one pass so assembly can
// be repeated or resumed without refetching.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// Run is one mining pass over a project.
type Run struct {
	ID         string     `db:"id"`
	Project    string     `db:"project"`
	Status     string     `db:"status"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

// Run statuses.
const (
	RunStatusMining   = "mining"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// Record kinds as stored.
const (
	recordKindGitCommit    = "git_commit"
	recordKindCommit       = "commit"
	recordKindIssue        = "issue"
	recordKindMergeRequest = "merge_request"
	recordKindTag          = "tag"
	recordKindRelease      = "release"
)

// Store persists runs and their mined records.
type Store interface {
	// CreateRun starts a new run for the project.
	CreateRun(ctx context.Context, project string) (*Run, error)

	// FinishRun marks the run with a final status.
	FinishRun(ctx context.Context, runID, status string) error

	// SaveRecords appends the record set to the run.
	SaveRecords(ctx context.Context, runID string, records models.RecordSet) error

	// LoadRecords reads back everything staged for the run.
	LoadRecords(ctx context.Context, runID string) (models.RecordSet, error)

	// LatestRun returns the most recently started complete run for the
	// project, or ErrNotFound.
	LatestRun(ctx context.Context, project string) (*Run, error)

	// ListRuns returns all runs for the project, newest first.
	ListRuns(ctx context.Context, project string) ([]Run, error)

	// Close releases the connection.
	Close() error
}

// Open returns the store matching the configured type.
func Open(storageType, sqlitePath, postgresDSN string) (Store, error) {
	switch storageType {
	case "postgres":
		return NewPostgresStore(postgresDSN)
	case "sqlite":
		return NewSQLiteStore(sqlitePath)
	default:
		return nil, gperrors.Configf("unknown storage type %q", storageType)
	}
}
