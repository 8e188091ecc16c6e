package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/models"
	"github.com/traceworks/gitprov/internal/prov"
	"github.com/traceworks/gitprov/internal/submodel"
)

func testRecords() models.RecordSet {
	t0 := time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)
	aliceOld := models.User{Name: "Alice A.", Email: "alice@old.com"}
	aliceNew := models.User{Name: "Alice A.", Email: "alice@new.com"}
	return models.RecordSet{
		GitCommits: []models.GitCommit{
			{SHA: "a1", Author: aliceOld, Committer: aliceOld, AuthoredAt: t0, CommittedAt: t0},
		},
		Commits: []models.Commit{
			{SHA: "a1", Platform: "gitlab", Author: aliceOld, AuthoredAt: t0, CommittedAt: t0},
		},
		Issues: []models.Issue{
			{ID: "1", Platform: "gitlab", Title: "bug", Author: aliceNew, CreatedAt: t0},
		},
	}
}

func TestRunAssemblesAndDeduplicates(t *testing.T) {
	records := testRecords()
	graph, report, err := Run(context.Background(), submodel.DefaultBuilders(records), Options{})
	require.NoError(t, err)
	assert.Zero(t, report.SkippedRecords())

	// Two distinct aliases, no resolution requested.
	assert.Len(t, graph.NodesOfKind(prov.KindAgent), 2)

	// The platform commit's creation links into the git history across
	// builder boundaries.
	_, ok := graph.Node(prov.GitCommitID("a1"))
	assert.True(t, ok)
}

func TestRunResolvesDoubleAgents(t *testing.T) {
	records := testRecords()
	graph, _, err := Run(context.Background(), submodel.DefaultBuilders(records), Options{
		ResolvePolicy: prov.PolicyExactName,
	})
	require.NoError(t, err)

	agents := graph.NodesOfKind(prov.KindAgent)
	require.Len(t, agents, 1)
	require.Len(t, graph.Merges, 1)
	assert.Contains(t, graph.Merges[0].Emails, "alice@old.com")
	assert.Contains(t, graph.Merges[0].Emails, "alice@new.com")
}

func TestRunPseudonymizes(t *testing.T) {
	records := testRecords()
	graph, _, err := Run(context.Background(), submodel.DefaultBuilders(records), Options{
		ResolvePolicy: prov.PolicyExactName,
		Pseudonymize:  true,
		PseudonymKey:  []byte("key"),
	})
	require.NoError(t, err)

	for _, agent := range graph.NodesOfKind(prov.KindAgent) {
		name, _ := agent.Attr(prov.AttrName)
		assert.NotEqual(t, "Alice A.", name)
	}
}

func TestRunUnknownPolicyFailsBeforeGraphWork(t *testing.T) {
	_, _, err := Run(context.Background(), nil, Options{ResolvePolicy: "metaphone"})
	require.Error(t, err)
	assert.Equal(t, gperrors.TypeConfig, gperrors.GetType(err))
}

func TestRunMissingPseudonymKeyIsFatal(t *testing.T) {
	_, _, err := Run(context.Background(), nil, Options{Pseudonymize: true})
	require.Error(t, err)
	assert.Equal(t, gperrors.TypeSecurity, gperrors.GetType(err))
}

func TestRunReportsMalformedRecords(t *testing.T) {
	records := testRecords()
	records.Issues = append(records.Issues, models.Issue{ID: "", Platform: "gitlab"})

	graph, report, err := Run(context.Background(), submodel.DefaultBuilders(records), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedRecords())
	assert.NotEmpty(t, graph.Nodes)
}
