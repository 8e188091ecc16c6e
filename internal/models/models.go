// Package models defines the typed mined records handed to the sub-model
// builders. Each record carries a stable natural key (commit hash, issue id,
// note id) and author/time metadata; records missing any of those are
// rejected individually by Validate and reported, never fatal to a run.
package models

import (
	"time"

	"github.com/traceworks/gitprov/internal/gperrors"
)

// User is the author identity attached to mined records.
type User struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Bot      bool   `json:"bot,omitempty"`
}

// ChangeStatus is the git status letter of a file change.
type ChangeStatus string

const (
	StatusAdded    ChangeStatus = "A"
	StatusModified ChangeStatus = "M"
	StatusDeleted  ChangeStatus = "D"
	StatusRenamed  ChangeStatus = "R"
	StatusCopied   ChangeStatus = "C"
)

// FileChange is one file touched by a commit, as reported by the diff.
type FileChange struct {
	Path      string       `json:"path"`
	OldPath   string       `json:"old_path,omitempty"`
	OriginSHA string       `json:"origin_sha"` // commit that introduced the file
	Status    ChangeStatus `json:"status"`
}

// GitCommit is a commit mined from the local repository history.
type GitCommit struct {
	SHA         string       `json:"sha"`
	Title       string       `json:"title"`
	Message     string       `json:"message"`
	Author      User         `json:"author"`
	Committer   User         `json:"committer"`
	Parents     []string     `json:"parents"`
	AuthoredAt  time.Time    `json:"authored_at"`
	CommittedAt time.Time    `json:"committed_at"`
	Files       []FileChange `json:"files"`
}

// AnnotationKind distinguishes the auxiliary records attached to a parent
// resource.
type AnnotationKind string

const (
	AnnotationNote  AnnotationKind = "note"
	AnnotationLabel AnnotationKind = "label"
	AnnotationAward AnnotationKind = "award"
	AnnotationEvent AnnotationKind = "event"
)

// Annotation is a note, label assignment, award mark or system event on a
// parent resource, ordered by CreatedAt within the parent.
type Annotation struct {
	ID        string         `json:"id"`
	Kind      AnnotationKind `json:"kind"`
	Body      string         `json:"body,omitempty"`
	Annotator User           `json:"annotator"`
	CreatedAt time.Time      `json:"created_at"`
}

// Commit is the hosted platform's view of a commit, with its annotations.
type Commit struct {
	SHA         string       `json:"sha"`
	URL         string       `json:"url"`
	Platform    string       `json:"platform"`
	Author      User         `json:"author"`
	AuthoredAt  time.Time    `json:"authored_at"`
	CommittedAt time.Time    `json:"committed_at"`
	Annotations []Annotation `json:"annotations"`
}

// Issue is a mined issue with its annotation history.
type Issue struct {
	ID          string       `json:"id"`
	IID         string       `json:"iid"`
	Platform    string       `json:"platform"`
	Title       string       `json:"title"`
	Body        string       `json:"body"`
	URL         string       `json:"url"`
	Author      User         `json:"author"`
	CreatedAt   time.Time    `json:"created_at"`
	ClosedAt    *time.Time   `json:"closed_at,omitempty"`
	Annotations []Annotation `json:"annotations"`
}

// MergeRequest is a mined merge/pull request with its annotation history.
type MergeRequest struct {
	ID           string       `json:"id"`
	IID          string       `json:"iid"`
	Platform     string       `json:"platform"`
	Title        string       `json:"title"`
	Body         string       `json:"body"`
	URL          string       `json:"url"`
	SourceBranch string       `json:"source_branch"`
	TargetBranch string       `json:"target_branch"`
	Author       User         `json:"author"`
	CreatedAt    time.Time    `json:"created_at"`
	ClosedAt     *time.Time   `json:"closed_at,omitempty"`
	MergedAt     *time.Time   `json:"merged_at,omitempty"`
	Annotations  []Annotation `json:"annotations"`
}

// Tag is an annotated or lightweight git tag.
type Tag struct {
	Name      string    `json:"name"`
	SHA       string    `json:"sha"`
	Message   string    `json:"message,omitempty"`
	Author    User      `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// Asset is a file attached to a release.
type Asset struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// Evidence is a release evidence record.
type Evidence struct {
	SHA         string    `json:"sha"`
	URL         string    `json:"url"`
	CollectedAt time.Time `json:"collected_at"`
}

// Release groups a tag with its published artifacts.
type Release struct {
	Name       string     `json:"name"`
	Body       string     `json:"body"`
	TagName    string     `json:"tag_name"`
	Platform   string     `json:"platform"`
	Author     *User      `json:"author,omitempty"`
	Assets     []Asset    `json:"assets,omitempty"`
	Evidence   []Evidence `json:"evidence,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ReleasedAt time.Time  `json:"released_at"`
}

// RecordSet is everything one mining pass hands to the builders.
type RecordSet struct {
	GitCommits    []GitCommit    `json:"git_commits,omitempty"`
	Commits       []Commit       `json:"commits,omitempty"`
	Issues        []Issue        `json:"issues,omitempty"`
	MergeRequests []MergeRequest `json:"merge_requests,omitempty"`
	Tags          []Tag          `json:"tags,omitempty"`
	Releases      []Release      `json:"releases,omitempty"`
}

// Merge appends other's records onto s.
func (s *RecordSet) Merge(other RecordSet) {
	s.GitCommits = append(s.GitCommits, other.GitCommits...)
	s.Commits = append(s.Commits, other.Commits...)
	s.Issues = append(s.Issues, other.Issues...)
	s.MergeRequests = append(s.MergeRequests, other.MergeRequests...)
	s.Tags = append(s.Tags, other.Tags...)
	s.Releases = append(s.Releases, other.Releases...)
}

func (u User) valid() bool {
	return u.Name != "" || u.Email != ""
}

// Validate reports a malformed git commit.
func (c GitCommit) Validate() error {
	switch {
	case c.SHA == "":
		return gperrors.Validation("git commit without sha")
	case !c.Author.valid():
		return gperrors.Validationf("git commit %s without author identity", c.SHA)
	case c.AuthoredAt.IsZero():
		return gperrors.Validationf("git commit %s without authored timestamp", c.SHA)
	}
	return nil
}

// Validate reports a malformed platform commit.
func (c Commit) Validate() error {
	switch {
	case c.SHA == "":
		return gperrors.Validation("commit without sha")
	case !c.Author.valid():
		return gperrors.Validationf("commit %s without author identity", c.SHA)
	case c.AuthoredAt.IsZero():
		return gperrors.Validationf("commit %s without authored timestamp", c.SHA)
	}
	return nil
}

// Validate reports a malformed issue.
func (i Issue) Validate() error {
	switch {
	case i.ID == "":
		return gperrors.Validation("issue without id")
	case !i.Author.valid():
		return gperrors.Validationf("issue %s without author identity", i.ID)
	case i.CreatedAt.IsZero():
		return gperrors.Validationf("issue %s without created timestamp", i.ID)
	}
	return nil
}

// Validate reports a malformed merge request.
func (m MergeRequest) Validate() error {
	switch {
	case m.ID == "":
		return gperrors.Validation("merge request without id")
	case !m.Author.valid():
		return gperrors.Validationf("merge request %s without author identity", m.ID)
	case m.CreatedAt.IsZero():
		return gperrors.Validationf("merge request %s without created timestamp", m.ID)
	}
	return nil
}

// Validate reports a malformed annotation.
func (a Annotation) Validate() error {
	switch {
	case a.ID == "":
		return gperrors.Validation("annotation without id")
	case !a.Annotator.valid():
		return gperrors.Validationf("annotation %s without annotator identity", a.ID)
	case a.CreatedAt.IsZero():
		return gperrors.Validationf("annotation %s without created timestamp", a.ID)
	}
	return nil
}

// Validate reports a malformed tag.
func (t Tag) Validate() error {
	switch {
	case t.Name == "":
		return gperrors.Validation("tag without name")
	case !t.Author.valid():
		return gperrors.Validationf("tag %s without author identity", t.Name)
	case t.CreatedAt.IsZero():
		return gperrors.Validationf("tag %s without created timestamp", t.Name)
	}
	return nil
}

// Validate reports a malformed release.
func (r Release) Validate() error {
	switch {
	case r.Name == "":
		return gperrors.Validation("release without name")
	case r.CreatedAt.IsZero():
		return gperrors.Validationf("release %s without created timestamp", r.Name)
	}
	return nil
}
