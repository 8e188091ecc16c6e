package submodel

import (
	"github.com/traceworks/gitprov/internal/models"
	"github.com/traceworks/gitprov/internal/prov"
)

// ReleaseTagBuilder models tags, the releases published from them, and the
// membership links back to the tagged commit.
type ReleaseTagBuilder struct {
	tags     []models.Tag
	releases []models.Release
	commits  []models.Commit
}

func NewReleaseTagBuilder(tags []models.Tag, releases []models.Release, commits []models.Commit) *ReleaseTagBuilder {
	return &ReleaseTagBuilder{tags: tags, releases: releases, commits: commits}
}

func (b *ReleaseTagBuilder) Name() string { return "releases-and-tags" }

func (b *ReleaseTagBuilder) Build() (*prov.Graph, *Report) {
	g := prov.NewGraph()
	report := &Report{Builder: b.Name(), Records: len(b.tags) + len(b.releases)}
	agents := newAgentEmitter()

	releaseByTag := make(map[string]models.Release, len(b.releases))
	for _, r := range b.releases {
		if err := r.Validate(); err != nil {
			report.skip("release", r.Name, err)
			continue
		}
		releaseByTag[r.TagName] = r
	}
	commitBySHA := make(map[string]models.Commit, len(b.commits))
	for _, c := range b.commits {
		if c.Validate() == nil {
			commitBySHA[c.SHA] = c
		}
	}

	for _, tag := range b.tags {
		if err := tag.Validate(); err != nil {
			report.skip("tag", tag.Name, err)
			continue
		}
		tagID := b.addTag(g, agents, tag)
		if release, ok := releaseByTag[tag.Name]; ok {
			releaseID := b.addRelease(g, agents, release)
			g.Relate(prov.Membership, tagID, releaseID)
		}
		if commit, ok := commitBySHA[tag.SHA]; ok {
			// The commit entity lives in the commit resource subgraph; emit a
			// minimal twin here so this subgraph stays self-contained.
			commitID := g.Entity(prov.CommitID(commit.SHA), prov.TypeCommit,
				prov.KV("sha", commit.SHA))
			g.Relate(prov.Membership, commitID, tagID)
		}
	}
	return g, report
}

func (b *ReleaseTagBuilder) addTag(g *prov.Graph, agents *agentEmitter, tag models.Tag) string {
	tagID := g.Entity(prov.TagID(tag.Name), prov.TypeTag,
		prov.KV("name", tag.Name),
		prov.KV("sha", tag.SHA),
		prov.KV("message", tag.Message),
		prov.TimeKV("created_at", tag.CreatedAt),
	)
	creationID := g.Activity(prov.CreationID(prov.TypeTag, tag.Name), prov.TypeTag+"Creation",
		prov.TimeKV("started_at", tag.CreatedAt), prov.TimeKV("ended_at", tag.CreatedAt))
	author := agents.emit(g, tag.Author)
	g.Relate(prov.Generation, tagID, creationID)
	g.Relate(prov.Attribution, tagID, author)
	g.Relate(prov.Association, creationID, author, prov.KV(prov.AttrRole, "TagAuthor"))
	return tagID
}

func (b *ReleaseTagBuilder) addRelease(g *prov.Graph, agents *agentEmitter, release models.Release) string {
	releaseID := g.Entity(prov.ReleaseID(release.Name), prov.TypeRelease,
		prov.KV("name", release.Name),
		prov.KV("body", release.Body),
		prov.KV("tag_name", release.TagName),
		prov.KV("platform", release.Platform),
		prov.TimeKV("created_at", release.CreatedAt),
		prov.TimeKV("released_at", release.ReleasedAt),
	)
	creationID := g.Activity(prov.CreationID(prov.TypeRelease, release.Name), prov.TypeRelease+"Creation",
		prov.TimeKV("started_at", release.CreatedAt), prov.TimeKV("ended_at", release.ReleasedAt))
	g.Relate(prov.Generation, releaseID, creationID,
		prov.KV(prov.AttrRole, prov.RoleRelease), prov.TimeKV("at", release.CreatedAt))
	if release.Author != nil {
		author := agents.emit(g, *release.Author)
		g.Relate(prov.Attribution, releaseID, author)
		g.Relate(prov.Association, creationID, author, prov.KV(prov.AttrRole, "ReleaseAuthor"))
	}
	for _, asset := range release.Assets {
		assetID := g.Entity(prov.AssetID(asset.URL), prov.TypeAsset,
			prov.KV("url", asset.URL), prov.KV("format", asset.Format))
		g.Relate(prov.Membership, releaseID, assetID)
	}
	for _, ev := range release.Evidence {
		evidenceID := g.Entity(prov.EvidenceID(ev.SHA), prov.TypeEvidence,
			prov.KV("sha", ev.SHA), prov.KV("url", ev.URL), prov.TimeKV("collected_at", ev.CollectedAt))
		g.Relate(prov.Membership, releaseID, evidenceID)
	}
	return releaseID
}
