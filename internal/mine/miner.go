// Package mine pulls raw records out of a repository and its hosting
// platform. A Miner speaks one source (the local clone, the GitLab API,
// the GitHub API) and returns typed records; it never shapes graphs.
package mine

import (
	"context"

	"github.com/traceworks/gitprov/internal/models"
)

// Miner extracts records from one source.
type Miner interface {
	// Name identifies the source in logs and reports.
	Name() string

	// Mine fetches all records the source can provide. Failures that
	// make the whole source unreadable are returned as errors; records
	// that are individually malformed are passed through and rejected
	// later by the builders.
	Mine(ctx context.Context) (models.RecordSet, error)
}

// All runs every miner in order and merges the results.
func All(ctx context.Context, miners ...Miner) (models.RecordSet, error) {
	var records models.RecordSet
	for _, m := range miners {
		rs, err := m.Mine(ctx)
		if err != nil {
			return models.RecordSet{}, err
		}
		records.Merge(rs)
	}
	return records, nil
}
