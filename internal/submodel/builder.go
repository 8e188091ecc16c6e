// Package submodel holds the sub-model builders, one per mined record
// family. Each builder independently turns its record set into a
// self-contained provenance subgraph; identifiers are derived from natural
// keys so that builders referencing the same real object collide on purpose,
// to be collapsed later by the deduplicator. Builders never share state and
// are safe to run in parallel.
package submodel

import (
	"strings"

	"github.com/traceworks/gitprov/internal/logging"
	"github.com/traceworks/gitprov/internal/models"
	"github.com/traceworks/gitprov/internal/prov"
)

// Builder produces one provenance subgraph from a homogeneous record set.
type Builder interface {
	Name() string
	Build() (*prov.Graph, *Report)
}

// SkippedRecord describes one malformed record dropped from a build.
type SkippedRecord struct {
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Report collects the data-quality outcomes of one build. Malformed records
// are dropped and reported here, never escalated to errors.
type Report struct {
	Builder string          `json:"builder"`
	Records int             `json:"records"`
	Skipped []SkippedRecord `json:"skipped,omitempty"`
}

func (r *Report) skip(kind, key string, err error) {
	r.Skipped = append(r.Skipped, SkippedRecord{Kind: kind, Key: key, Reason: err.Error()})
	logging.Warn("skipping malformed record", "builder", r.Builder, "kind", kind, "key", key, "reason", err)
}

// DefaultBuilders wires the standard builder list for a record set, in the
// order the models are defined.
func DefaultBuilders(records models.RecordSet) []Builder {
	return []Builder{
		NewCommitHistoryBuilder(records.GitCommits),
		NewCommitResourceBuilder(records.Commits, records.GitCommits),
		NewIssueResourceBuilder(records.Issues),
		NewMergeRequestResourceBuilder(records.MergeRequests),
		NewReleaseTagBuilder(records.Tags, records.Releases, records.Commits),
	}
}

// agentEmitter deduplicates agent emission inside one builder so that every
// agent node emitted for the same (name, email) pair is identical in content
// and identifier.
type agentEmitter struct {
	seen map[string]struct{}
}

func newAgentEmitter() *agentEmitter {
	return &agentEmitter{seen: map[string]struct{}{}}
}

func (e *agentEmitter) emit(g *prov.Graph, u models.User) string {
	id := prov.UserID(u.Name, u.Email)
	if _, ok := e.seen[id]; ok {
		return id
	}
	e.seen[id] = struct{}{}
	attrs := []prov.Attr{
		prov.KV(prov.AttrName, u.Name),
		prov.KV(prov.AttrEmail, lowerEmail(u.Email)),
	}
	if u.Username != "" {
		attrs = append(attrs, prov.KV("username", u.Username))
	}
	role := "human"
	if u.Bot {
		role = "bot"
	}
	attrs = append(attrs, prov.KV(prov.AttrRole, role))
	return g.Agent(id, prov.TypeUser, attrs...)
}

func lowerEmail(email string) string {
	return strings.ToLower(email)
}
