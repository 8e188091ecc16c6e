package storage

import (
	"encoding/json"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/models"
)

type recordRow struct {
	Kind    string `db:"kind"`
	Payload []byte `db:"payload"`
}

// encodeRecords flattens a record set into kind-tagged JSON rows.
func encodeRecords(records models.RecordSet) ([]recordRow, error) {
	var rows []recordRow
	add := func(kind string, v any) error {
		payload, err := json.Marshal(v)
		if err != nil {
			return gperrors.Storage(err, "failed to encode "+kind+" record")
		}
		rows = append(rows, recordRow{Kind: kind, Payload: payload})
		return nil
	}

	for _, r := range records.GitCommits {
		if err := add(recordKindGitCommit, r); err != nil {
			return nil, err
		}
	}
	for _, r := range records.Commits {
		if err := add(recordKindCommit, r); err != nil {
			return nil, err
		}
	}
	for _, r := range records.Issues {
		if err := add(recordKindIssue, r); err != nil {
			return nil, err
		}
	}
	for _, r := range records.MergeRequests {
		if err := add(recordKindMergeRequest, r); err != nil {
			return nil, err
		}
	}
	for _, r := range records.Tags {
		if err := add(recordKindTag, r); err != nil {
			return nil, err
		}
	}
	for _, r := range records.Releases {
		if err := add(recordKindRelease, r); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// decodeRecords rebuilds a record set from stored rows. Rows with an
// unknown kind were written by a newer version and are a fatal
// storage mismatch.
func decodeRecords(rows []recordRow) (models.RecordSet, error) {
	var records models.RecordSet
	for _, row := range rows {
		var err error
		switch row.Kind {
		case recordKindGitCommit:
			var r models.GitCommit
			if err = json.Unmarshal(row.Payload, &r); err == nil {
				records.GitCommits = append(records.GitCommits, r)
			}
		case recordKindCommit:
			var r models.Commit
			if err = json.Unmarshal(row.Payload, &r); err == nil {
				records.Commits = append(records.Commits, r)
			}
		case recordKindIssue:
			var r models.Issue
			if err = json.Unmarshal(row.Payload, &r); err == nil {
				records.Issues = append(records.Issues, r)
			}
		case recordKindMergeRequest:
			var r models.MergeRequest
			if err = json.Unmarshal(row.Payload, &r); err == nil {
				records.MergeRequests = append(records.MergeRequests, r)
			}
		case recordKindTag:
			var r models.Tag
			if err = json.Unmarshal(row.Payload, &r); err == nil {
				records.Tags = append(records.Tags, r)
			}
		case recordKindRelease:
			var r models.Release
			if err = json.Unmarshal(row.Payload, &r); err == nil {
				records.Releases = append(records.Releases, r)
			}
		default:
			return models.RecordSet{}, gperrors.Internalf("unknown staged record kind %q", row.Kind)
		}
		if err != nil {
			return models.RecordSet{}, gperrors.Storage(err, "failed to decode "+row.Kind+" record")
		}
	}
	return records, nil
}
