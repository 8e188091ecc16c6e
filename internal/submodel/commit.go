package submodel

import (
	"sort"
	"strings"

	"github.com/traceworks/gitprov/internal/models"
	"github.com/traceworks/gitprov/internal/prov"
)

// CommitHistoryBuilder models the local git history: one activity per
// commit, author and committer agents, wasInformedBy links to parents, and
// the file change sub-models (addition, modification, deletion) with file
// and file-revision entities.
type CommitHistoryBuilder struct {
	commits []models.GitCommit
}

func NewCommitHistoryBuilder(commits []models.GitCommit) *CommitHistoryBuilder {
	return &CommitHistoryBuilder{commits: commits}
}

func (b *CommitHistoryBuilder) Name() string { return "commit-history" }

func (b *CommitHistoryBuilder) Build() (*prov.Graph, *Report) {
	g := prov.NewGraph()
	report := &Report{Builder: b.Name(), Records: len(b.commits)}
	agents := newAgentEmitter()

	// Chronological order so revision chains see predecessors first.
	commits := make([]models.GitCommit, len(b.commits))
	copy(commits, b.commits)
	sort.Slice(commits, func(i, j int) bool {
		if !commits[i].CommittedAt.Equal(commits[j].CommittedAt) {
			return commits[i].CommittedAt.Before(commits[j].CommittedAt)
		}
		return commits[i].SHA < commits[j].SHA
	})

	present := make(map[string]struct{}, len(commits))
	for _, c := range commits {
		if err := c.Validate(); err == nil {
			present[c.SHA] = struct{}{}
		}
	}

	chains := newRevisionChains()
	for _, c := range commits {
		if err := c.Validate(); err != nil {
			report.skip("git_commit", c.SHA, err)
			continue
		}
		commitID := gitCommitActivity(g, c)
		author := agents.emit(g, c.Author)
		committer := agents.emit(g, c.Committer)
		g.Relate(prov.Association, commitID, author, prov.KV(prov.AttrRole, prov.RoleAuthor))
		g.Relate(prov.Association, commitID, committer, prov.KV(prov.AttrRole, prov.RoleCommitter))

		for _, parent := range c.Parents {
			// Parents outside the mined range stay unlinked rather than dangling.
			if _, ok := present[parent]; ok {
				g.Relate(prov.Communication, commitID, prov.GitCommitID(parent))
			}
		}

		for _, fc := range c.Files {
			b.addFileChange(g, chains, c, commitID, author, fc)
		}
	}
	return g, report
}

// gitCommitActivity emits the activity node for a commit. Shared with the
// commit resource builder, which links the hosted view back to the local
// history; both emit identical instances so deduplication collapses them.
func gitCommitActivity(g *prov.Graph, c models.GitCommit) string {
	return g.Activity(prov.GitCommitID(c.SHA), prov.TypeGitCommit,
		prov.KV("sha", c.SHA),
		prov.KV("title", c.Title),
		prov.KV("message", c.Message),
		prov.TimeKV("authored_at", c.AuthoredAt),
		prov.TimeKV("committed_at", c.CommittedAt),
	)
}

// revisionChains tracks, per file path, the last emitted revision identifier
// and the commit that introduced the file, so modifications can derive from
// their predecessor revision.
type revisionChains struct {
	lastRev map[string]string
	origin  map[string]string
}

func newRevisionChains() *revisionChains {
	return &revisionChains{lastRev: map[string]string{}, origin: map[string]string{}}
}

func (rc *revisionChains) originOf(fc models.FileChange, sha string) string {
	if fc.OriginSHA != "" {
		return fc.OriginSHA
	}
	if origin, ok := rc.origin[fc.Path]; ok {
		return origin
	}
	return sha
}

func (b *CommitHistoryBuilder) addFileChange(g *prov.Graph, chains *revisionChains, c models.GitCommit, commitID, author string, fc models.FileChange) {
	switch fc.Status {
	case models.StatusAdded:
		b.addition(g, chains, c, commitID, author, fc)
	case models.StatusModified, models.StatusRenamed, models.StatusCopied:
		b.modification(g, chains, c, commitID, author, fc)
	case models.StatusDeleted:
		b.deletion(g, chains, c, commitID, fc)
	}
}

func (b *CommitHistoryBuilder) addition(g *prov.Graph, chains *revisionChains, c models.GitCommit, commitID, author string, fc models.FileChange) {
	origin := chains.originOf(fc, c.SHA)
	chains.origin[fc.Path] = origin

	file := fileEntity(g, fc.Path, origin)
	rev := revisionEntity(g, fc, c.SHA)
	g.Relate(prov.Generation, file, commitID,
		prov.KV(prov.AttrRole, prov.RoleFile), prov.TimeKV("at", c.AuthoredAt))
	g.Relate(prov.Generation, rev, commitID,
		prov.KV(prov.AttrRole, prov.RoleAddedFile), prov.TimeKV("at", c.AuthoredAt))
	g.Relate(prov.Attribution, file, author)
	g.Relate(prov.Attribution, rev, author)
	g.Relate(prov.Specialization, rev, file)
	chains.lastRev[fc.Path] = rev
}

func (b *CommitHistoryBuilder) modification(g *prov.Graph, chains *revisionChains, c models.GitCommit, commitID, author string, fc models.FileChange) {
	trackedPath := fc.Path
	if fc.OldPath != "" && fc.OldPath != fc.Path {
		// Renames continue the old path's chain under the new path.
		chains.origin[fc.Path] = chains.originOf(models.FileChange{Path: fc.OldPath}, c.SHA)
		chains.lastRev[fc.Path] = chains.lastRev[fc.OldPath]
		delete(chains.lastRev, fc.OldPath)
		delete(chains.origin, fc.OldPath)
	}
	origin := chains.originOf(fc, c.SHA)
	chains.origin[trackedPath] = origin

	file := fileEntity(g, fc.Path, origin)
	rev := revisionEntity(g, fc, c.SHA)
	g.Relate(prov.Attribution, rev, author)
	g.Relate(prov.Generation, rev, commitID,
		prov.KV(prov.AttrRole, prov.RoleModifiedFile), prov.TimeKV("at", c.AuthoredAt))
	g.Relate(prov.Specialization, rev, file)
	if prev, ok := chains.lastRev[trackedPath]; ok && prev != "" {
		g.Relate(prov.Derivation, rev, prev)
		g.Relate(prov.Usage, commitID, prev,
			prov.KV(prov.AttrRole, prov.RoleUsedFile), prov.TimeKV("at", c.AuthoredAt))
	}
	chains.lastRev[trackedPath] = rev
}

func (b *CommitHistoryBuilder) deletion(g *prov.Graph, chains *revisionChains, c models.GitCommit, commitID string, fc models.FileChange) {
	origin := chains.originOf(fc, c.SHA)
	file := fileEntity(g, fc.Path, origin)
	rev := revisionEntity(g, fc, c.SHA)
	g.Relate(prov.Specialization, rev, file)
	g.Relate(prov.Invalidation, rev, commitID,
		prov.KV(prov.AttrRole, prov.RoleDeletedFile), prov.TimeKV("at", c.AuthoredAt))
	delete(chains.lastRev, fc.Path)
	delete(chains.origin, fc.Path)
}

func fileEntity(g *prov.Graph, path, origin string) string {
	name := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		name = path[i+1:]
	}
	return g.Entity(prov.FileID(path, origin), prov.TypeFile,
		prov.KV("name", name), prov.KV("path", path))
}

func revisionEntity(g *prov.Graph, fc models.FileChange, sha string) string {
	return g.Entity(prov.FileRevisionID(fc.Path, sha, string(fc.Status)), prov.TypeFileRevision,
		prov.KV("path", fc.Path), prov.KV("status", string(fc.Status)))
}
