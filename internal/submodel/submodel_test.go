package submodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceworks/gitprov/internal/models"
	"github.com/traceworks/gitprov/internal/prov"
)

var (
	alice = models.User{Name: "Alice", Email: "alice@example.com"}
	bob   = models.User{Name: "Bob", Email: "bob@example.com"}
	t0    = time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)
)

func relations(g *prov.Graph, typ prov.RelationType) []prov.Relation {
	var out []prov.Relation
	for _, r := range g.Relations {
		if r.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

func TestCommitHistoryBuilder(t *testing.T) {
	commits := []models.GitCommit{
		{
			SHA: "a1", Title: "add main", Author: alice, Committer: alice,
			AuthoredAt: t0, CommittedAt: t0,
			Files: []models.FileChange{{Path: "main.go", Status: models.StatusAdded}},
		},
		{
			SHA: "b2", Title: "fix main", Author: bob, Committer: alice, Parents: []string{"a1"},
			AuthoredAt: t0.Add(time.Hour), CommittedAt: t0.Add(time.Hour),
			Files: []models.FileChange{{Path: "main.go", Status: models.StatusModified}},
		},
	}

	g, report := NewCommitHistoryBuilder(commits).Build()
	assert.Empty(t, report.Skipped)

	deduped, err := prov.Dedupe(g)
	require.NoError(t, err)

	// One activity per commit, linked to its parent.
	informed := relations(deduped, prov.Communication)
	require.Len(t, informed, 1)
	assert.Equal(t, prov.GitCommitID("b2"), informed[0].Source)
	assert.Equal(t, prov.GitCommitID("a1"), informed[0].Target)

	// The modification derives from the revision added in a1 and the commit
	// used the prior revision.
	derived := relations(deduped, prov.Derivation)
	require.Len(t, derived, 1)
	assert.Equal(t, prov.FileRevisionID("main.go", "b2", "M"), derived[0].Source)
	assert.Equal(t, prov.FileRevisionID("main.go", "a1", "A"), derived[0].Target)
	require.Len(t, relations(deduped, prov.Usage), 1)

	// Both file revisions specialize the same file entity.
	fileID := prov.FileID("main.go", "a1")
	spec := relations(deduped, prov.Specialization)
	require.Len(t, spec, 2)
	for _, r := range spec {
		assert.Equal(t, fileID, r.Target)
	}

	assert.Len(t, deduped.NodesOfKind(prov.KindAgent), 2)
}

func TestCommitHistoryBuilderDeletion(t *testing.T) {
	commits := []models.GitCommit{
		{
			SHA: "a1", Author: alice, Committer: alice, AuthoredAt: t0, CommittedAt: t0,
			Files: []models.FileChange{{Path: "old.go", Status: models.StatusAdded}},
		},
		{
			SHA: "b2", Author: alice, Committer: alice,
			AuthoredAt: t0.Add(time.Hour), CommittedAt: t0.Add(time.Hour),
			Files: []models.FileChange{{Path: "old.go", Status: models.StatusDeleted}},
		},
	}

	g, _ := NewCommitHistoryBuilder(commits).Build()
	deduped, err := prov.Dedupe(g)
	require.NoError(t, err)

	invalidated := relations(deduped, prov.Invalidation)
	require.Len(t, invalidated, 1)
	assert.Equal(t, prov.FileRevisionID("old.go", "b2", "D"), invalidated[0].Source)
	assert.Equal(t, prov.GitCommitID("b2"), invalidated[0].Target)
}

func TestCommitHistoryBuilderSkipsMalformed(t *testing.T) {
	commits := []models.GitCommit{
		{SHA: "good", Author: alice, Committer: alice, AuthoredAt: t0, CommittedAt: t0},
		{SHA: "", Author: alice, Committer: alice, AuthoredAt: t0},      // no key
		{SHA: "noauthor", AuthoredAt: t0, CommittedAt: t0},              // no author
		{SHA: "notime", Author: alice, Committer: alice},                // no timestamp
	}

	g, report := NewCommitHistoryBuilder(commits).Build()
	assert.Len(t, report.Skipped, 3)

	deduped, err := prov.Dedupe(g)
	require.NoError(t, err)
	assert.Len(t, deduped.NodesOfKind(prov.KindActivity), 1)
}

func TestAgentEmissionStableWithinBuilder(t *testing.T) {
	commits := []models.GitCommit{
		{SHA: "a1", Author: alice, Committer: alice, AuthoredAt: t0, CommittedAt: t0},
		{SHA: "b2", Author: alice, Committer: alice, AuthoredAt: t0.Add(time.Hour), CommittedAt: t0.Add(time.Hour)},
	}
	g, _ := NewCommitHistoryBuilder(commits).Build()

	agents := g.NodesOfKind(prov.KindAgent)
	require.Len(t, agents, 1)
	assert.Equal(t, prov.UserID("Alice", "alice@example.com"), agents[0].ID)
}

func TestIssueResourceBuilderAnnotationChain(t *testing.T) {
	issue := models.Issue{
		ID: "42", IID: "7", Platform: "gitlab", Title: "crash on start",
		URL: "https://example.com/issues/7", Author: alice, CreatedAt: t0,
		Annotations: []models.Annotation{
			{ID: "n2", Kind: models.AnnotationLabel, Body: "bug", Annotator: alice, CreatedAt: t0.Add(2 * time.Hour)},
			{ID: "n1", Kind: models.AnnotationNote, Body: "repro attached", Annotator: bob, CreatedAt: t0.Add(time.Hour)},
		},
	}

	g, report := NewIssueResourceBuilder([]models.Issue{issue}).Build()
	assert.Empty(t, report.Skipped)
	deduped, err := prov.Dedupe(g)
	require.NoError(t, err)

	issueID := prov.IssueID("42")
	firstVersion := prov.VersionID(prov.TypeIssue, "42")
	noteActivity := prov.AnnotationID("42", "note", "n1")
	labelActivity := prov.AnnotationID("42", "label", "n2")

	// Annotations are chained chronologically, n1 before n2.
	informed := relations(deduped, prov.Communication)
	require.Len(t, informed, 2)
	assert.Equal(t, noteActivity, informed[0].Source)
	assert.Equal(t, prov.CreationID(prov.TypeIssue, "42"), informed[0].Target)
	assert.Equal(t, labelActivity, informed[1].Source)
	assert.Equal(t, noteActivity, informed[1].Target)

	// Each annotated version derives from its predecessor.
	derived := relations(deduped, prov.Derivation)
	require.Len(t, derived, 2)
	assert.Equal(t, firstVersion, derived[0].Target)
	assert.Equal(t, prov.AnnotatedVersionID(prov.TypeIssue, "42", "n1"), derived[1].Target)

	// Every version specializes the issue entity.
	for _, r := range relations(deduped, prov.Specialization) {
		assert.Equal(t, issueID, r.Target)
	}
}

func TestIssueResourceBuilderSkipsMalformedAnnotation(t *testing.T) {
	issue := models.Issue{
		ID: "1", Platform: "gitlab", Author: alice, CreatedAt: t0,
		Annotations: []models.Annotation{
			{ID: "", Kind: models.AnnotationNote, Annotator: bob, CreatedAt: t0},
		},
	}
	g, report := NewIssueResourceBuilder([]models.Issue{issue}).Build()
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "note", report.Skipped[0].Kind)

	_, err := prov.Dedupe(g)
	assert.NoError(t, err)
}

func TestCommitResourceBuilderLinksGitCommit(t *testing.T) {
	gitCommit := models.GitCommit{SHA: "a1", Author: alice, Committer: alice, AuthoredAt: t0, CommittedAt: t0}
	commit := models.Commit{SHA: "a1", Platform: "gitlab", Author: alice, AuthoredAt: t0, CommittedAt: t0}

	g, _ := NewCommitResourceBuilder([]models.Commit{commit}, []models.GitCommit{gitCommit}).Build()
	deduped, err := prov.Dedupe(g)
	require.NoError(t, err)

	informed := relations(deduped, prov.Communication)
	require.Len(t, informed, 1)
	assert.Equal(t, prov.CreationID(prov.TypeCommit, "a1"), informed[0].Source)
	assert.Equal(t, prov.GitCommitID("a1"), informed[0].Target)
}

func TestMergeRequestBuilderEmitsResourceModel(t *testing.T) {
	merged := t0.Add(48 * time.Hour)
	mr := models.MergeRequest{
		ID: "9", IID: "3", Platform: "gitlab", Title: "feature",
		SourceBranch: "feature", TargetBranch: "main",
		Author: bob, CreatedAt: t0, MergedAt: &merged,
	}
	g, report := NewMergeRequestResourceBuilder([]models.MergeRequest{mr}).Build()
	assert.Empty(t, report.Skipped)

	deduped, err := prov.Dedupe(g)
	require.NoError(t, err)

	node, ok := deduped.Node(prov.MergeRequestID("9"))
	require.True(t, ok)
	branch, _ := node.Attr("target_branch")
	assert.Equal(t, "main", branch)

	generated := relations(deduped, prov.Generation)
	assert.Len(t, generated, 2) // resource and first version
}

func TestReleaseTagBuilder(t *testing.T) {
	tag := models.Tag{Name: "v1.0", SHA: "a1", Author: alice, CreatedAt: t0}
	release := models.Release{
		Name: "1.0", TagName: "v1.0", Platform: "gitlab", Author: &alice,
		Assets:    []models.Asset{{URL: "https://example.com/a.tar.gz", Format: "tar.gz"}},
		CreatedAt: t0, ReleasedAt: t0,
	}
	commit := models.Commit{SHA: "a1", Platform: "gitlab", Author: alice, AuthoredAt: t0, CommittedAt: t0}

	g, report := NewReleaseTagBuilder([]models.Tag{tag}, []models.Release{release}, []models.Commit{commit}).Build()
	assert.Empty(t, report.Skipped)

	deduped, err := prov.Dedupe(g)
	require.NoError(t, err)

	members := relations(deduped, prov.Membership)
	require.Len(t, members, 3)

	_, ok := deduped.Node(prov.ReleaseID("1.0"))
	assert.True(t, ok)
	_, ok = deduped.Node(prov.AssetID("https://example.com/a.tar.gz"))
	assert.True(t, ok)
}

func TestBuildersCollideOnSharedIdentifiers(t *testing.T) {
	// Two builders independently emit the Alice agent; identifiers collide
	// by construction so the deduplicator can collapse them.
	gitCommit := models.GitCommit{SHA: "a1", Author: alice, Committer: alice, AuthoredAt: t0, CommittedAt: t0}
	issue := models.Issue{ID: "1", Platform: "gitlab", Author: alice, CreatedAt: t0}

	cg, _ := NewCommitHistoryBuilder([]models.GitCommit{gitCommit}).Build()
	ig, _ := NewIssueResourceBuilder([]models.Issue{issue}).Build()

	combined := prov.Combine(cg, ig)
	deduped, err := prov.Dedupe(combined)
	require.NoError(t, err)

	assert.Len(t, deduped.NodesOfKind(prov.KindAgent), 1)
}
