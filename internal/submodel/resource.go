package submodel

import (
	"sort"

	"github.com/traceworks/gitprov/internal/models"
	"github.com/traceworks/gitprov/internal/prov"
)

// resource abstracts the commit/issue/merge-request views that share the
// creation + version + annotation-chain model.
type resource struct {
	entityID   string
	entityType string
	naturalKey string
	creationID string
	versionID  string
}

// addCreation emits the resource entity, its creation activity, its first
// version, and the relations binding them to the author.
func addCreation(g *prov.Graph, agents *agentEmitter, r resource, author models.User, attrs []prov.Attr, start prov.Attr, end prov.Attr, authorRole string) {
	g.Entity(r.entityID, r.entityType, attrs...)
	g.Activity(r.creationID, r.entityType+"Creation", start, end)
	g.Entity(r.versionID, r.entityType+prov.TypeVersionSuffix, prov.KV("uid", r.naturalKey))

	agentID := agents.emit(g, author)
	g.Relate(prov.Association, r.creationID, agentID, prov.KV(prov.AttrRole, authorRole))
	g.Relate(prov.Attribution, r.entityID, agentID)
	g.Relate(prov.Attribution, r.versionID, agentID)
	g.Relate(prov.Specialization, r.versionID, r.entityID)
	g.Relate(prov.Generation, r.entityID, r.creationID,
		prov.KV(prov.AttrRole, prov.RoleResource), start)
	g.Relate(prov.Generation, r.versionID, r.creationID,
		prov.KV(prov.AttrRole, prov.RoleFirstVersion), start)
}

// addAnnotations walks the annotation history of a resource in creation
// order, chaining each annotation activity to its predecessor and each
// annotated version to the previous version.
func addAnnotations(g *prov.Graph, agents *agentEmitter, report *Report, r resource, annotations []models.Annotation) {
	ordered := make([]models.Annotation, len(annotations))
	copy(ordered, annotations)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
		}
		return ordered[i].ID < ordered[j].ID
	})

	prevActivity := r.creationID
	prevVersion := r.versionID
	for _, annot := range ordered {
		if err := annot.Validate(); err != nil {
			report.skip(string(annot.Kind), annot.ID, err)
			continue
		}
		annotID := g.Activity(
			prov.AnnotationID(r.naturalKey, string(annot.Kind), annot.ID),
			prov.TypeAnnotation,
			prov.KV("kind", string(annot.Kind)),
			prov.KV("body", annot.Body),
			prov.TimeKV("started_at", annot.CreatedAt),
			prov.TimeKV("ended_at", annot.CreatedAt),
		)
		versionID := g.Entity(
			prov.AnnotatedVersionID(r.entityType, r.naturalKey, annot.ID),
			"Annotated"+r.entityType+prov.TypeVersionSuffix,
			prov.KV("uid", r.naturalKey),
			prov.KV("annotation", annot.ID),
		)
		annotator := agents.emit(g, annot.Annotator)

		g.Relate(prov.Association, annotID, annotator, prov.KV(prov.AttrRole, prov.RoleAnnotator))
		g.Relate(prov.Communication, annotID, prevActivity)
		g.Relate(prov.Usage, annotID, prevVersion,
			prov.KV(prov.AttrRole, prov.RoleBeforeAnnot), prov.TimeKV("at", annot.CreatedAt))
		g.Relate(prov.Attribution, versionID, annotator)
		g.Relate(prov.Generation, versionID, annotID,
			prov.KV(prov.AttrRole, prov.RoleAfterAnnot), prov.TimeKV("at", annot.CreatedAt))
		g.Relate(prov.Specialization, versionID, r.entityID)
		g.Relate(prov.Derivation, versionID, prevVersion)

		prevActivity = annotID
		prevVersion = versionID
	}
}

// CommitResourceBuilder models the hosted platform's view of commits:
// commit entities with creation activities and annotation chains, linked
// back to the local git commit activity when the commit is in the mined
// history.
type CommitResourceBuilder struct {
	commits    []models.Commit
	gitCommits []models.GitCommit
}

func NewCommitResourceBuilder(commits []models.Commit, gitCommits []models.GitCommit) *CommitResourceBuilder {
	return &CommitResourceBuilder{commits: commits, gitCommits: gitCommits}
}

func (b *CommitResourceBuilder) Name() string { return "commit-resources" }

func (b *CommitResourceBuilder) Build() (*prov.Graph, *Report) {
	g := prov.NewGraph()
	report := &Report{Builder: b.Name(), Records: len(b.commits)}
	agents := newAgentEmitter()

	bySHA := make(map[string]models.GitCommit, len(b.gitCommits))
	for _, gc := range b.gitCommits {
		if gc.Validate() == nil {
			bySHA[gc.SHA] = gc
		}
	}

	for _, c := range b.commits {
		if err := c.Validate(); err != nil {
			report.skip("commit", c.SHA, err)
			continue
		}
		r := resource{
			entityID:   prov.CommitID(c.SHA),
			entityType: prov.TypeCommit,
			naturalKey: c.SHA,
			creationID: prov.CreationID(prov.TypeCommit, c.SHA),
			versionID:  prov.VersionID(prov.TypeCommit, c.SHA),
		}
		attrs := []prov.Attr{
			prov.KV("sha", c.SHA),
			prov.KV("url", c.URL),
			prov.KV("platform", c.Platform),
			prov.TimeKV("authored_at", c.AuthoredAt),
			prov.TimeKV("committed_at", c.CommittedAt),
		}
		addCreation(g, agents, r, c.Author, attrs,
			prov.TimeKV("started_at", c.AuthoredAt), prov.TimeKV("ended_at", c.CommittedAt),
			prov.RoleAuthor)

		if gc, ok := bySHA[c.SHA]; ok {
			// Emit the git commit activity here too so this subgraph stays
			// self-contained; dedupe collapses it with the history builder's copy.
			commitActivity := gitCommitActivity(g, gc)
			g.Relate(prov.Communication, r.creationID, commitActivity)
		}
		addAnnotations(g, agents, report, r, c.Annotations)
	}
	return g, report
}

// IssueResourceBuilder models issues and their annotation histories.
type IssueResourceBuilder struct {
	issues []models.Issue
}

func NewIssueResourceBuilder(issues []models.Issue) *IssueResourceBuilder {
	return &IssueResourceBuilder{issues: issues}
}

func (b *IssueResourceBuilder) Name() string { return "issue-resources" }

func (b *IssueResourceBuilder) Build() (*prov.Graph, *Report) {
	g := prov.NewGraph()
	report := &Report{Builder: b.Name(), Records: len(b.issues)}
	agents := newAgentEmitter()

	for _, issue := range b.issues {
		if err := issue.Validate(); err != nil {
			report.skip("issue", issue.ID, err)
			continue
		}
		r := resource{
			entityID:   prov.IssueID(issue.ID),
			entityType: prov.TypeIssue,
			naturalKey: issue.ID,
			creationID: prov.CreationID(prov.TypeIssue, issue.ID),
			versionID:  prov.VersionID(prov.TypeIssue, issue.ID),
		}
		attrs := []prov.Attr{
			prov.KV("id", issue.ID),
			prov.KV("iid", issue.IID),
			prov.KV("platform", issue.Platform),
			prov.KV("title", issue.Title),
			prov.KV("body", issue.Body),
			prov.KV("url", issue.URL),
			prov.TimeKV("created_at", issue.CreatedAt),
			prov.OptTimeKV("closed_at", issue.ClosedAt),
		}
		addCreation(g, agents, r, issue.Author, attrs,
			prov.TimeKV("started_at", issue.CreatedAt), prov.OptTimeKV("ended_at", issue.ClosedAt),
			"IssueAuthor")
		addAnnotations(g, agents, report, r, issue.Annotations)
	}
	return g, report
}

// MergeRequestResourceBuilder models merge requests and their annotation
// histories.
type MergeRequestResourceBuilder struct {
	mergeRequests []models.MergeRequest
}

func NewMergeRequestResourceBuilder(mergeRequests []models.MergeRequest) *MergeRequestResourceBuilder {
	return &MergeRequestResourceBuilder{mergeRequests: mergeRequests}
}

func (b *MergeRequestResourceBuilder) Name() string { return "merge-request-resources" }

func (b *MergeRequestResourceBuilder) Build() (*prov.Graph, *Report) {
	g := prov.NewGraph()
	report := &Report{Builder: b.Name(), Records: len(b.mergeRequests)}
	agents := newAgentEmitter()

	for _, mr := range b.mergeRequests {
		if err := mr.Validate(); err != nil {
			report.skip("merge_request", mr.ID, err)
			continue
		}
		r := resource{
			entityID:   prov.MergeRequestID(mr.ID),
			entityType: prov.TypeMergeRequest,
			naturalKey: mr.ID,
			creationID: prov.CreationID(prov.TypeMergeRequest, mr.ID),
			versionID:  prov.VersionID(prov.TypeMergeRequest, mr.ID),
		}
		attrs := []prov.Attr{
			prov.KV("id", mr.ID),
			prov.KV("iid", mr.IID),
			prov.KV("platform", mr.Platform),
			prov.KV("title", mr.Title),
			prov.KV("body", mr.Body),
			prov.KV("url", mr.URL),
			prov.KV("source_branch", mr.SourceBranch),
			prov.KV("target_branch", mr.TargetBranch),
			prov.TimeKV("created_at", mr.CreatedAt),
			prov.OptTimeKV("closed_at", mr.ClosedAt),
			prov.OptTimeKV("merged_at", mr.MergedAt),
		}
		addCreation(g, agents, r, mr.Author, attrs,
			prov.TimeKV("started_at", mr.CreatedAt), prov.OptTimeKV("ended_at", mr.ClosedAt),
			"MergeRequestAuthor")
		addAnnotations(g, agents, report, r, mr.Annotations)
	}
	return g, report
}
