package mine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceworks/gitprov/internal/models"
)

func logRecord(sha, parents, title, message, nameStatus string) string {
	fields := []string{
		sha, parents,
		"Alice", "alice@example.com", "2024-03-01T10:00:00+00:00",
		"Alice", "alice@example.com", "2024-03-01T10:05:00+00:00",
		title, message, "\n" + nameStatus,
	}
	return recordSep + strings.Join(fields, fieldSep)
}

func TestParseGitLog(t *testing.T) {
	out := logRecord("aaa", "", "add readme", "add readme\n\nlong body", "A\tREADME.md") +
		logRecord("bbb", "aaa", "rename readme", "rename readme", "R100\tREADME.md\tdocs/README.md")

	commits, err := parseGitLog(out)
	require.NoError(t, err)
	require.Len(t, commits, 2)

	first := commits[0]
	assert.Equal(t, "aaa", first.SHA)
	assert.Empty(t, first.Parents)
	assert.Equal(t, "add readme", first.Title)
	assert.Equal(t, "add readme\n\nlong body", first.Message)
	assert.Equal(t, "alice@example.com", first.Author.Email)
	assert.False(t, first.AuthoredAt.IsZero())
	require.Len(t, first.Files, 1)
	assert.Equal(t, models.StatusAdded, first.Files[0].Status)
	assert.Equal(t, "README.md", first.Files[0].Path)

	second := commits[1]
	assert.Equal(t, []string{"aaa"}, second.Parents)
	require.Len(t, second.Files, 1)
	assert.Equal(t, models.StatusRenamed, second.Files[0].Status)
	assert.Equal(t, "README.md", second.Files[0].OldPath)
	assert.Equal(t, "docs/README.md", second.Files[0].Path)
}

func TestParseGitLogMalformedRecord(t *testing.T) {
	_, err := parseGitLog(recordSep + "only" + fieldSep + "three" + fieldSep + "fields")
	require.Error(t, err)
}

func TestParseNameStatusSkipsUnknownLetters(t *testing.T) {
	files := parseNameStatus("A\ta.go\nT\tweird\nM\tb.go")
	require.Len(t, files, 2)
	assert.Equal(t, "a.go", files[0].Path)
	assert.Equal(t, "b.go", files[1].Path)
}

func TestTrackOriginsFollowsRenames(t *testing.T) {
	commits := []models.GitCommit{
		{SHA: "c1", Files: []models.FileChange{{Status: models.StatusAdded, Path: "a.go"}}},
		{SHA: "c2", Files: []models.FileChange{{Status: models.StatusRenamed, OldPath: "a.go", Path: "b.go"}}},
		{SHA: "c3", Files: []models.FileChange{{Status: models.StatusModified, Path: "b.go"}}},
		{SHA: "c4", Files: []models.FileChange{{Status: models.StatusDeleted, Path: "b.go"}}},
	}

	trackOrigins(commits)

	assert.Equal(t, "c1", commits[0].Files[0].OriginSHA)
	assert.Equal(t, "c1", commits[1].Files[0].OriginSHA)
	assert.Equal(t, "c1", commits[2].Files[0].OriginSHA)
	assert.Equal(t, "c1", commits[3].Files[0].OriginSHA)
}

func TestTrackOriginsCopyStartsNewLineage(t *testing.T) {
	commits := []models.GitCommit{
		{SHA: "c1", Files: []models.FileChange{{Status: models.StatusAdded, Path: "a.go"}}},
		{SHA: "c2", Files: []models.FileChange{{Status: models.StatusCopied, OldPath: "a.go", Path: "copy.go"}}},
	}

	trackOrigins(commits)

	assert.Equal(t, "c2", commits[1].Files[0].OriginSHA)
}

func TestTrackOriginsUnknownFileFallsBack(t *testing.T) {
	// Modification of a file added before the mined range.
	commits := []models.GitCommit{
		{SHA: "c9", Files: []models.FileChange{{Status: models.StatusModified, Path: "old.go"}}},
	}

	trackOrigins(commits)

	assert.Equal(t, "c9", commits[0].Files[0].OriginSHA)
}

func TestSplitRepoPath(t *testing.T) {
	owner, repo, err := SplitRepoPath("acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "widgets", repo)

	_, _, err = SplitRepoPath("no-slash")
	require.Error(t, err)

	_, _, err = SplitRepoPath("/leading")
	require.Error(t, err)
}
