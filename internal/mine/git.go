package mine

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/logging"
	"github.com/traceworks/gitprov/internal/models"
)

const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
)

// logFormat emits one machine-parseable record per commit. The full
// message is followed by a trailing field separator so the name-status
// block that git appends can be split off unambiguously.
const logFormat = recordSep +
	"%H" + fieldSep + // sha
	"%P" + fieldSep + // parents
	"%an" + fieldSep + "%ae" + fieldSep + "%aI" + fieldSep + // author
	"%cn" + fieldSep + "%ce" + fieldSep + "%cI" + fieldSep + // committer
	"%s" + fieldSep + // title
	"%B" + fieldSep // message

// GitMiner reads commit history out of a local clone with git log.
type GitMiner struct {
	repoPath string
}

// NewGitMiner creates a miner for the clone at repoPath.
func NewGitMiner(repoPath string) *GitMiner {
	return &GitMiner{repoPath: repoPath}
}

func (m *GitMiner) Name() string { return "git" }

// Mine parses the full history of every ref. Commits come back oldest
// first so file origins can be tracked across renames in one pass.
func (m *GitMiner) Mine(ctx context.Context) (models.RecordSet, error) {
	cmd := exec.CommandContext(ctx, "git", "log",
		"--all", "--reverse", "--topo-order", "--name-status",
		"--pretty=format:"+logFormat)
	cmd.Dir = m.repoPath

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return models.RecordSet{}, gperrors.Storage(err,
				fmt.Sprintf("git log failed in %s: %s", m.repoPath, strings.TrimSpace(string(exitErr.Stderr))))
		}
		return models.RecordSet{}, gperrors.Storage(err, "git log failed in "+m.repoPath)
	}

	commits, err := parseGitLog(string(output))
	if err != nil {
		return models.RecordSet{}, err
	}
	trackOrigins(commits)

	logging.Debug("mined local history", "repo", m.repoPath, "commits", len(commits))
	return models.RecordSet{GitCommits: commits}, nil
}

// parseGitLog splits git log output produced with logFormat into
// commits. Records arrive oldest first.
func parseGitLog(out string) ([]models.GitCommit, error) {
	var commits []models.GitCommit
	for _, record := range strings.Split(out, recordSep) {
		if strings.TrimSpace(record) == "" {
			continue
		}
		fields := strings.Split(record, fieldSep)
		if len(fields) < 11 {
			return nil, gperrors.Internalf("malformed git log record: %q", record)
		}

		authoredAt, _ := time.Parse(time.RFC3339, fields[4])
		committedAt, _ := time.Parse(time.RFC3339, fields[7])

		c := models.GitCommit{
			SHA:         fields[0],
			Parents:     strings.Fields(fields[1]),
			Author:      models.User{Name: fields[2], Email: fields[3]},
			Committer:   models.User{Name: fields[5], Email: fields[6]},
			AuthoredAt:  authoredAt,
			CommittedAt: committedAt,
			Title:       fields[8],
			Message:     strings.TrimSpace(fields[9]),
			Files:       parseNameStatus(fields[10]),
		}
		commits = append(commits, c)
	}
	return commits, nil
}

// parseNameStatus reads the --name-status block of one commit.
func parseNameStatus(block string) []models.FileChange {
	var files []models.FileChange
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		status := models.ChangeStatus(parts[0][:1])
		switch status {
		case models.StatusRenamed, models.StatusCopied:
			if len(parts) < 3 {
				continue
			}
			files = append(files, models.FileChange{
				Status:  status,
				OldPath: parts[1],
				Path:    parts[2],
			})
		case models.StatusAdded, models.StatusModified, models.StatusDeleted:
			if len(parts) < 2 {
				continue
			}
			files = append(files, models.FileChange{
				Status: status,
				Path:   parts[1],
			})
		}
	}
	return files
}

// trackOrigins assigns each file change the commit that first added the
// file, following renames and copies. Commits must be ordered oldest
// first. Files whose addition predates the mined range fall back to the
// commit at hand.
func trackOrigins(commits []models.GitCommit) {
	origin := make(map[string]string)
	for i := range commits {
		sha := commits[i].SHA
		for j := range commits[i].Files {
			f := &commits[i].Files[j]
			switch f.Status {
			case models.StatusAdded:
				origin[f.Path] = sha
				f.OriginSHA = sha
			case models.StatusRenamed:
				if o, ok := origin[f.OldPath]; ok {
					origin[f.Path] = o
					delete(origin, f.OldPath)
				} else {
					origin[f.Path] = sha
				}
				f.OriginSHA = origin[f.Path]
			case models.StatusCopied:
				// A copy starts a new lineage at the copying commit.
				origin[f.Path] = sha
				f.OriginSHA = sha
			default:
				if o, ok := origin[f.Path]; ok {
					f.OriginSHA = o
				} else {
					origin[f.Path] = sha
					f.OriginSHA = sha
				}
			}
		}
	}
}
