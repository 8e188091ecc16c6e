package prov

import (
	"net/url"
	"strings"
	"time"
)

// Node identifiers are pure functions of a record kind and its natural key.
// Builders never share state; they collide on identifiers on purpose, and
// the deduplicator collapses those collisions into single nodes.

// Common attribute keys.
const (
	AttrName  = "name"
	AttrEmail = "email"
	AttrRole  = "role"
)

// Node type tags.
const (
	TypeUser             = "User"
	TypeGitCommit        = "GitCommit"
	TypeFile             = "File"
	TypeFileRevision     = "FileRevision"
	TypeCommit           = "Commit"
	TypeIssue            = "Issue"
	TypeMergeRequest     = "MergeRequest"
	TypeAnnotation       = "Annotation"
	TypeCreation         = "Creation"
	TypeTag              = "Tag"
	TypeRelease          = "Release"
	TypeAsset            = "Asset"
	TypeEvidence         = "Evidence"
	TypeVersionSuffix    = "Version"
	TypeAnnotatedVersion = "AnnotatedVersion"
)

func qualify(localpart string, pairs ...[2]string) string {
	vals := url.Values{}
	for _, p := range pairs {
		vals.Set(p[0], p[1])
	}
	return localpart + "?" + vals.Encode()
}

// UserID derives the agent identifier for a (name, email) pair. Emails are
// lowercased so the same address never spawns two agents.
func UserID(name, email string) string {
	return qualify("user", [2]string{"name", name}, [2]string{"email", strings.ToLower(email)})
}

// GitCommitID identifies the activity of a commit in the local history.
func GitCommitID(sha string) string {
	return qualify("git-commit", [2]string{"sha", sha})
}

// CommitID identifies the hosted (platform) view of a commit.
func CommitID(sha string) string {
	return qualify("commit", [2]string{"sha", sha})
}

// IssueID identifies an issue resource.
func IssueID(id string) string {
	return qualify("issue", [2]string{"id", id})
}

// MergeRequestID identifies a merge request resource.
func MergeRequestID(id string) string {
	return qualify("merge-request", [2]string{"id", id})
}

// FileID identifies a file across its whole history, anchored at the commit
// that introduced it.
func FileID(path, originSHA string) string {
	return qualify("file", [2]string{"path", path}, [2]string{"origin", originSHA})
}

// FileRevisionID identifies the state of a file at one commit.
func FileRevisionID(path, sha, status string) string {
	return qualify("file-revision",
		[2]string{"path", path}, [2]string{"sha", sha}, [2]string{"status", status})
}

// AnnotationID identifies a note, label assignment or award mark attached to
// a parent resource.
func AnnotationID(parent, kind, id string) string {
	return qualify("annotation", [2]string{"parent", parent}, [2]string{"kind", kind}, [2]string{"id", id})
}

// VersionID identifies the first version of a resource.
func VersionID(resource, uid string) string {
	return qualify(strings.ToLower(resource)+"-version", [2]string{"uid", uid})
}

// AnnotatedVersionID identifies the version of a resource after one
// annotation was applied.
func AnnotatedVersionID(resource, uid, annotationID string) string {
	return qualify("annotated-"+strings.ToLower(resource)+"-version",
		[2]string{"uid", uid}, [2]string{"annotation", annotationID})
}

// CreationID identifies the activity that created a resource.
func CreationID(resource, uid string) string {
	return qualify("creation", [2]string{"resource", resource}, [2]string{"uid", uid})
}

// TagID identifies a git tag.
func TagID(name string) string {
	return qualify("tag", [2]string{"name", name})
}

// ReleaseID identifies a release.
func ReleaseID(name string) string {
	return qualify("release", [2]string{"name", name})
}

// AssetID identifies a release asset by URL.
func AssetID(rawURL string) string {
	return qualify("asset", [2]string{"url", rawURL})
}

// EvidenceID identifies a release evidence record.
func EvidenceID(sha string) string {
	return qualify("evidence", [2]string{"sha", sha})
}

// KV builds one attribute pair.
func KV(key, value string) Attr {
	return Attr{Key: key, Value: value}
}

// TimeKV formats a timestamp attribute in RFC 3339 UTC.
func TimeKV(key string, t time.Time) Attr {
	return Attr{Key: key, Value: t.UTC().Format(time.RFC3339)}
}

// OptTimeKV is TimeKV for nullable timestamps; nil yields an empty value so
// open-ended activities still carry the key.
func OptTimeKV(key string, t *time.Time) Attr {
	if t == nil {
		return Attr{Key: key}
	}
	return TimeKV(key, *t)
}

// Role attribute values used by the sub-models.
const (
	RoleAuthor       = "Author"
	RoleCommitter    = "Committer"
	RoleAnnotator    = "Annotator"
	RoleResource     = "Resource"
	RoleFirstVersion = "ResourceVersionAtPointOfCreation"
	RoleBeforeAnnot  = "ResourceVersionToBeAnnotated"
	RoleAfterAnnot   = "ResourceVersionAfterAnnotation"
	RoleFile         = "File"
	RoleAddedFile    = "FileRevisionAtPointOfAddition"
	RoleModifiedFile = "FileRevisionAfterModification"
	RoleUsedFile     = "FileRevisionToBeModified"
	RoleDeletedFile  = "FileRevisionAtPointOfDeletion"
	RoleRelease      = "Release"
)
