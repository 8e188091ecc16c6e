package prov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceworks/gitprov/internal/gperrors"
)

func aliceAgent(g *Graph, attrs ...Attr) string {
	base := []Attr{KV(AttrName, "Alice"), KV(AttrEmail, "alice@example.com")}
	return g.Agent(UserID("Alice", "alice@example.com"), TypeUser, append(base, attrs...)...)
}

func TestCombineCommutative(t *testing.T) {
	a := NewGraph()
	a.Activity(GitCommitID("abc"), TypeGitCommit, KV("sha", "abc"))
	aliceAgent(a)
	a.Relate(Association, GitCommitID("abc"), UserID("Alice", "alice@example.com"))

	b := NewGraph()
	b.Entity(IssueID("1"), TypeIssue, KV("id", "1"))
	aliceAgent(b)

	ab := Combine(a, b)
	ba := Combine(b, a)
	assert.True(t, ab.Equal(ba))
	assert.Len(t, ab.Nodes, 4)
}

func TestCombinePreservesDuplicateInstances(t *testing.T) {
	a := NewGraph()
	aliceAgent(a, KV("username", "alice"))
	b := NewGraph()
	aliceAgent(b, KV("tz", "UTC"))

	combined := Combine(a, b)
	// No semantic merging in the combiner: both instances survive.
	require.Len(t, combined.Nodes, 2)
	assert.Equal(t, combined.Nodes[0].ID, combined.Nodes[1].ID)
}

func TestDedupeMergesAgentInstances(t *testing.T) {
	a := NewGraph()
	aliceAgent(a, KV("username", "alice"))
	b := NewGraph()
	aliceAgent(b, KV("tz", "UTC"))

	deduped, err := Dedupe(Combine(a, b))
	require.NoError(t, err)

	require.Len(t, deduped.Nodes, 1)
	node := deduped.Nodes[0]
	assert.Equal(t, UserID("Alice", "alice@example.com"), node.ID)

	// Union of both instances' attributes, nothing lost.
	for _, key := range []string{"name", "email", "username", "tz"} {
		_, ok := node.Attr(key)
		assert.True(t, ok, "attribute %q lost in merge", key)
	}
}

func TestDedupeFirstValueWinsAndRecordsConflict(t *testing.T) {
	g := NewGraph()
	g.Entity(IssueID("7"), TypeIssue, KV("title", "first"))
	g.Entity(IssueID("7"), TypeIssue, KV("title", "second"))

	deduped, err := Dedupe(g)
	require.NoError(t, err)

	title, _ := deduped.Nodes[0].Attr("title")
	assert.Equal(t, "first", title)
	require.Len(t, deduped.Conflicts, 1)
	assert.Equal(t, "second", deduped.Conflicts[0].Dropped)
}

func TestDedupeDuplicateRelation(t *testing.T) {
	g := NewGraph()
	commit := g.Activity(GitCommitID("abc"), TypeGitCommit)
	agent := aliceAgent(g)
	// The same relation produced twice by two overlapping builders.
	g.Relate(Association, commit, agent)
	g.Relate(Association, commit, agent)
	// Attribute-divergent relations are distinct values and both survive.
	g.Relate(Association, commit, agent, KV(AttrRole, RoleCommitter))

	deduped, err := Dedupe(g)
	require.NoError(t, err)
	assert.Len(t, deduped.Relations, 2)
}

func TestDedupeIdempotent(t *testing.T) {
	g := NewGraph()
	commit := g.Activity(GitCommitID("abc"), TypeGitCommit, KV("sha", "abc"))
	agent := aliceAgent(g)
	aliceAgent(g, KV("username", "alice"))
	g.Relate(Association, commit, agent)
	g.Relate(Association, commit, agent)

	once, err := Dedupe(g)
	require.NoError(t, err)
	twice, err := Dedupe(once)
	require.NoError(t, err)
	assert.True(t, once.Equal(twice))
}

func TestDedupeDanglingEndpointIsFatal(t *testing.T) {
	g := NewGraph()
	g.Activity(GitCommitID("abc"), TypeGitCommit)
	g.Relate(Association, GitCommitID("abc"), UserID("Ghost", "ghost@nowhere"))

	_, err := Dedupe(g)
	require.Error(t, err)
	assert.Equal(t, gperrors.TypeInternal, gperrors.GetType(err))
	assert.True(t, gperrors.IsFatal(err))
}

func TestDedupeKindMismatchIsFatal(t *testing.T) {
	g := NewGraph()
	g.Entity("x?id=1", TypeIssue)
	g.Activity("x?id=1", TypeIssue)

	_, err := Dedupe(g)
	require.Error(t, err)
	assert.Equal(t, gperrors.TypeInternal, gperrors.GetType(err))
}
