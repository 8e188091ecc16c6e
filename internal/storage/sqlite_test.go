package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceworks/gitprov/internal/models"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "staging.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecords() models.RecordSet {
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return models.RecordSet{
		GitCommits: []models.GitCommit{{
			SHA:         "abc",
			Title:       "add parser",
			Author:      models.User{Name: "Alice", Email: "alice@example.com"},
			Committer:   models.User{Name: "Alice", Email: "alice@example.com"},
			AuthoredAt:  at,
			CommittedAt: at,
			Files:       []models.FileChange{{Path: "parser.go", OriginSHA: "abc", Status: models.StatusAdded}},
		}},
		Issues: []models.Issue{{
			ID:        "7",
			IID:       "7",
			Platform:  "gitlab",
			Title:     "parser crashes",
			Author:    models.User{Name: "Bob"},
			CreatedAt: at,
			Annotations: []models.Annotation{{
				ID:        "n1",
				Kind:      models.AnnotationNote,
				Body:      "confirmed",
				Annotator: models.User{Name: "Alice", Email: "alice@example.com"},
				CreatedAt: at.Add(time.Hour),
			}},
		}},
		Releases: []models.Release{{
			Name:      "v1.0.0",
			TagName:   "v1.0.0",
			Platform:  "gitlab",
			CreatedAt: at,
		}},
	}
}

func TestRunLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, RunStatusMining, run.Status)
	assert.NotEmpty(t, run.ID)

	// No complete run yet.
	_, err = s.LatestRun(ctx, "acme/widgets")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.FinishRun(ctx, run.ID, RunStatusComplete))

	latest, err := s.LatestRun(ctx, "acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, run.ID, latest.ID)
	assert.Equal(t, RunStatusComplete, latest.Status)
	assert.NotNil(t, latest.FinishedAt)
}

func TestFinishUnknownRun(t *testing.T) {
	s := testStore(t)
	err := s.FinishRun(context.Background(), "does-not-exist", RunStatusFailed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveLoadRecords(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "acme/widgets")
	require.NoError(t, err)

	want := sampleRecords()
	require.NoError(t, s.SaveRecords(ctx, run.ID, want))

	got, err := s.LoadRecords(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveRecordsAppends(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "acme/widgets")
	require.NoError(t, err)

	require.NoError(t, s.SaveRecords(ctx, run.ID, sampleRecords()))
	require.NoError(t, s.SaveRecords(ctx, run.ID, models.RecordSet{
		Tags: []models.Tag{{Name: "v1.0.0", SHA: "abc", Author: models.User{Name: "Alice"}, CreatedAt: time.Now().UTC()}},
	}))

	got, err := s.LoadRecords(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got.GitCommits, 1)
	assert.Len(t, got.Tags, 1)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx, "acme/widgets")
	require.NoError(t, err)
	second, err := s.CreateRun(ctx, "acme/widgets")
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "other/project")
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, "acme/widgets")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
}

func TestDecodeUnknownKindIsFatal(t *testing.T) {
	_, err := decodeRecords([]recordRow{{Kind: "mystery", Payload: []byte("{}")}})
	require.Error(t, err)
}
