package prov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceworks/gitprov/internal/gperrors"
)

func agentWith(g *Graph, name, email string) string {
	return g.Agent(UserID(name, email), TypeUser,
		KV(AttrName, name), KV(AttrEmail, email))
}

func TestParsePolicy(t *testing.T) {
	for _, name := range []string{PolicyExactEmail, PolicyExactName, PolicyEmailOrName, "similarity:0.85"} {
		p, err := ParsePolicy(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, p.String())
	}
}

func TestParsePolicyUnknownIsConfigError(t *testing.T) {
	_, err := ParsePolicy("soundex")
	require.Error(t, err)
	assert.Equal(t, gperrors.TypeConfig, gperrors.GetType(err))

	_, err = ParsePolicy("similarity:1.5")
	require.Error(t, err)
	assert.Equal(t, gperrors.TypeConfig, gperrors.GetType(err))
}

func TestResolveExactNameMergesAliases(t *testing.T) {
	g := NewGraph()
	old := agentWith(g, "Alice A.", "alice@old.com")
	new_ := agentWith(g, "Alice A.", "alice@new.com")
	commit := g.Activity(GitCommitID("abc"), TypeGitCommit)
	g.Relate(Association, commit, old)
	g.Relate(Association, commit, new_)

	policy, err := ParsePolicy(PolicyExactName)
	require.NoError(t, err)
	resolved, err := Dedupe(ResolveDoubleAgents(g, policy))
	require.NoError(t, err)

	agents := resolved.NodesOfKind(KindAgent)
	require.Len(t, agents, 1)

	canonical := agents[0]
	emails, _ := canonical.Attr("alias_emails")
	assert.Equal(t, "alice@new.com;alice@old.com", emails)

	// Rewriting plus re-dedupe leaves exactly one association.
	require.Len(t, resolved.Relations, 1)
	assert.Equal(t, canonical.ID, resolved.Relations[0].Target)

	require.Len(t, resolved.Merges, 1)
	assert.Equal(t, canonical.ID, resolved.Merges[0].Canonical)
}

func TestResolveClusterTransitiveClosure(t *testing.T) {
	// A and C never match directly; both match B. The union-find closes the
	// chain into one cluster.
	g := NewGraph()
	agentWith(g, "Alice", "alice@work.com")
	agentWith(g, "Alice", "alice@home.com") // name-matches the first, email-matches the third
	agentWith(g, "A. Liddell", "alice@home.com")

	policy, err := ParsePolicy(PolicyEmailOrName)
	require.NoError(t, err)
	resolved, err := Dedupe(ResolveDoubleAgents(g, policy))
	require.NoError(t, err)

	agents := resolved.NodesOfKind(KindAgent)
	require.Len(t, agents, 1)
	merge := resolved.Merges[0]
	assert.Len(t, merge.Merged, 2)
	assert.NotContains(t, merge.Merged, merge.Canonical)
}

func TestResolveSizeOneClusterIsNoop(t *testing.T) {
	g := NewGraph()
	agentWith(g, "Alice", "alice@example.com")
	agentWith(g, "Bob", "bob@example.com")

	policy, _ := ParsePolicy(PolicyExactEmail)
	resolved, err := Dedupe(ResolveDoubleAgents(g, policy))
	require.NoError(t, err)

	assert.Len(t, resolved.NodesOfKind(KindAgent), 2)
	assert.Empty(t, resolved.Merges)
	for _, a := range resolved.NodesOfKind(KindAgent) {
		_, hasAliases := a.Attr("aliases")
		assert.False(t, hasAliases)
	}
}

func TestResolveCanonicalIsSmallestIdentifier(t *testing.T) {
	g := NewGraph()
	first := agentWith(g, "Alice", "a@example.com")
	second := agentWith(g, "Alice", "b@example.com")

	policy, _ := ParsePolicy(PolicyExactName)
	resolved, err := Dedupe(ResolveDoubleAgents(g, policy))
	require.NoError(t, err)

	want := first
	if second < first {
		want = second
	}
	agents := resolved.NodesOfKind(KindAgent)
	require.Len(t, agents, 1)
	assert.Equal(t, want, agents[0].ID)
}

func TestResolveSimilarityPolicy(t *testing.T) {
	g := NewGraph()
	agentWith(g, "Jon Smith", "jon@example.com")
	agentWith(g, "John Smith", "john.smith@corp.example.com")
	agentWith(g, "Dave Grohl", "dave@example.com")

	policy, err := ParsePolicy("similarity:0.85")
	require.NoError(t, err)
	resolved, err := Dedupe(ResolveDoubleAgents(g, policy))
	require.NoError(t, err)

	assert.Len(t, resolved.NodesOfKind(KindAgent), 2)
}

func TestResolveLeavesNonAgentsUntouched(t *testing.T) {
	g := NewGraph()
	issue := g.Entity(IssueID("1"), TypeIssue, KV("title", "bug"))
	alice := agentWith(g, "Alice", "alice@old.com")
	agentWith(g, "Alice", "alice@new.com")
	g.Relate(Attribution, issue, alice)

	policy, _ := ParsePolicy(PolicyExactName)
	resolved, err := Dedupe(ResolveDoubleAgents(g, policy))
	require.NoError(t, err)

	node, ok := resolved.Node(IssueID("1"))
	require.True(t, ok)
	title, _ := node.Attr("title")
	assert.Equal(t, "bug", title)
}

func TestSimilarityRatio(t *testing.T) {
	assert.Equal(t, 1.0, similarity("Alice", "alice"))
	assert.Equal(t, 0.0, similarity("", "alice"))
	assert.InDelta(t, 0.8, similarity("alice", "alicf"), 0.01)
}
