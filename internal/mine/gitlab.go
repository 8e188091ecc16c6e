package mine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gitlab "github.com/xanzy/go-gitlab"
	"golang.org/x/time/rate"

	"github.com/traceworks/gitprov/internal/cache"
	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/logging"
	"github.com/traceworks/gitprov/internal/models"
)

const platformGitLab = "gitlab"

// GitLabMiner extracts commits, issues, merge requests, tags and
// releases together with their annotation history from the GitLab API.
type GitLabMiner struct {
	client      *gitlab.Client
	project     string
	rateLimiter *rate.Limiter
	cache       *cache.Cache
}

// NewGitLabMiner creates a miner for the project path (e.g.
// "group/repo") on the given GitLab instance. The cache is optional.
func NewGitLabMiner(baseURL, token, project string, reqPerSec int, c *cache.Cache) (*GitLabMiner, error) {
	client, err := gitlab.NewClient(token, gitlab.WithBaseURL(baseURL))
	if err != nil {
		return nil, gperrors.Config("failed to create gitlab client: " + err.Error())
	}
	if reqPerSec <= 0 {
		reqPerSec = 10
	}
	return &GitLabMiner{
		client:      client,
		project:     project,
		rateLimiter: rate.NewLimiter(rate.Limit(reqPerSec), 1),
		cache:       c,
	}, nil
}

func (m *GitLabMiner) Name() string { return "gitlab" }

func (m *GitLabMiner) Mine(ctx context.Context) (models.RecordSet, error) {
	var records models.RecordSet

	commits, err := m.mineCommits(ctx)
	if err != nil {
		return models.RecordSet{}, err
	}
	records.Commits = commits

	issues, err := m.mineIssues(ctx)
	if err != nil {
		return models.RecordSet{}, err
	}
	records.Issues = issues

	mergeRequests, err := m.mineMergeRequests(ctx)
	if err != nil {
		return models.RecordSet{}, err
	}
	records.MergeRequests = mergeRequests

	tags, err := m.mineTags(ctx)
	if err != nil {
		return models.RecordSet{}, err
	}
	records.Tags = tags

	releases, err := m.mineReleases(ctx)
	if err != nil {
		return models.RecordSet{}, err
	}
	records.Releases = releases

	logging.Info("mined gitlab project", "project", m.project,
		"commits", len(records.Commits), "issues", len(records.Issues),
		"merge_requests", len(records.MergeRequests),
		"tags", len(records.Tags), "releases", len(records.Releases))
	return records, nil
}

func (m *GitLabMiner) wait(ctx context.Context) error {
	if err := m.rateLimiter.Wait(ctx); err != nil {
		return gperrors.Network(err, "rate limiter interrupted")
	}
	return nil
}

func (m *GitLabMiner) mineCommits(ctx context.Context) ([]models.Commit, error) {
	opt := &gitlab.ListCommitsOptions{
		All:         gitlab.Ptr(true),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	var out []models.Commit
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		commits, resp, err := m.client.Commits.ListCommits(m.project, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gperrors.Network(err, "failed to list commits")
		}

		for _, c := range commits {
			commit := models.Commit{
				SHA:      c.ID,
				URL:      c.WebURL,
				Platform: platformGitLab,
				Author:   models.User{Name: c.AuthorName, Email: c.AuthorEmail},
			}
			if c.AuthoredDate != nil {
				commit.AuthoredAt = *c.AuthoredDate
			}
			if c.CommittedDate != nil {
				commit.CommittedAt = *c.CommittedDate
			}

			annotations, err := m.commitAnnotations(ctx, c.ID)
			if err != nil {
				return nil, err
			}
			commit.Annotations = annotations
			out = append(out, commit)
		}

		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

// commitAnnotations lists the discussion notes on one commit. Commit
// discussions rarely change once written, so they are served from the
// cache when present.
func (m *GitLabMiner) commitAnnotations(ctx context.Context, sha string) ([]models.Annotation, error) {
	cacheKey := "gitlab/commit-discussions/" + sha
	if m.cache != nil {
		var cached []models.Annotation
		if ok, err := m.cache.Get(cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	opt := &gitlab.ListCommitDiscussionsOptions{PerPage: 100}
	var out []models.Annotation
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		discussions, resp, err := m.client.Discussions.ListCommitDiscussions(m.project, sha, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gperrors.Network(err, "failed to list commit discussions for "+sha)
		}

		for _, d := range discussions {
			for _, n := range d.Notes {
				out = append(out, noteAnnotation(n))
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	if m.cache != nil {
		if err := m.cache.Put(cacheKey, out); err != nil {
			logging.Warn("failed to cache commit discussions", "sha", sha, "error", err)
		}
	}
	return out, nil
}

func noteAnnotation(n *gitlab.Note) models.Annotation {
	kind := models.AnnotationNote
	if n.System {
		kind = models.AnnotationEvent
	}
	a := models.Annotation{
		ID:   strconv.Itoa(n.ID),
		Kind: kind,
		Body: n.Body,
		Annotator: models.User{
			Name:     n.Author.Name,
			Email:    n.Author.Email,
			Username: n.Author.Username,
		},
	}
	if n.CreatedAt != nil {
		a.CreatedAt = *n.CreatedAt
	}
	return a
}

func (m *GitLabMiner) mineIssues(ctx context.Context) ([]models.Issue, error) {
	opt := &gitlab.ListProjectIssuesOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	var out []models.Issue
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		issues, resp, err := m.client.Issues.ListProjectIssues(m.project, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gperrors.Network(err, "failed to list issues")
		}

		for _, i := range issues {
			issue := models.Issue{
				ID:       strconv.Itoa(i.ID),
				IID:      strconv.Itoa(i.IID),
				Platform: platformGitLab,
				Title:    i.Title,
				Body:     i.Description,
				URL:      i.WebURL,
				ClosedAt: i.ClosedAt,
			}
			if i.Author != nil {
				issue.Author = models.User{Name: i.Author.Name, Username: i.Author.Username}
			}
			if i.CreatedAt != nil {
				issue.CreatedAt = *i.CreatedAt
			}

			annotations, err := m.issueAnnotations(ctx, i.IID)
			if err != nil {
				return nil, err
			}
			issue.Annotations = annotations
			out = append(out, issue)
		}

		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (m *GitLabMiner) issueAnnotations(ctx context.Context, iid int) ([]models.Annotation, error) {
	var out []models.Annotation

	noteOpt := &gitlab.ListIssueNotesOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		notes, resp, err := m.client.Notes.ListIssueNotes(m.project, iid, noteOpt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gperrors.Network(err, fmt.Sprintf("failed to list notes for issue %d", iid))
		}
		for _, n := range notes {
			out = append(out, noteAnnotation(n))
		}
		if resp.NextPage == 0 {
			break
		}
		noteOpt.Page = resp.NextPage
	}

	labelOpt := &gitlab.ListLabelEventsOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		events, resp, err := m.client.ResourceLabelEvents.ListIssueLabelEvents(m.project, iid, labelOpt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gperrors.Network(err, fmt.Sprintf("failed to list label events for issue %d", iid))
		}
		for _, e := range events {
			out = append(out, labelAnnotation(e))
		}
		if resp.NextPage == 0 {
			break
		}
		labelOpt.Page = resp.NextPage
	}

	awardOpt := &gitlab.ListAwardEmojiOptions{PerPage: 100}
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		awards, resp, err := m.client.AwardEmoji.ListIssueAwardEmoji(m.project, iid, awardOpt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gperrors.Network(err, fmt.Sprintf("failed to list award emoji for issue %d", iid))
		}
		for _, a := range awards {
			out = append(out, awardAnnotation(a))
		}
		if resp.NextPage == 0 {
			break
		}
		awardOpt.Page = resp.NextPage
	}

	return out, nil
}

func labelAnnotation(e *gitlab.LabelEvent) models.Annotation {
	a := models.Annotation{
		ID:   strconv.Itoa(e.ID),
		Kind: models.AnnotationLabel,
		Body: e.Action + " " + e.Label.Name,
		Annotator: models.User{
			Name:     e.User.Name,
			Username: e.User.Username,
		},
	}
	if e.CreatedAt != nil {
		a.CreatedAt = *e.CreatedAt
	}
	return a
}

func awardAnnotation(e *gitlab.AwardEmoji) models.Annotation {
	a := models.Annotation{
		ID:   strconv.Itoa(e.ID),
		Kind: models.AnnotationAward,
		Body: e.Name,
		Annotator: models.User{
			Name:     e.User.Name,
			Username: e.User.Username,
		},
	}
	if e.CreatedAt != nil {
		a.CreatedAt = *e.CreatedAt
	}
	return a
}

func (m *GitLabMiner) mineMergeRequests(ctx context.Context) ([]models.MergeRequest, error) {
	opt := &gitlab.ListProjectMergeRequestsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	var out []models.MergeRequest
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		mrs, resp, err := m.client.MergeRequests.ListProjectMergeRequests(m.project, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gperrors.Network(err, "failed to list merge requests")
		}

		for _, mr := range mrs {
			record := models.MergeRequest{
				ID:           strconv.Itoa(mr.ID),
				IID:          strconv.Itoa(mr.IID),
				Platform:     platformGitLab,
				Title:        mr.Title,
				Body:         mr.Description,
				URL:          mr.WebURL,
				SourceBranch: mr.SourceBranch,
				TargetBranch: mr.TargetBranch,
				ClosedAt:     mr.ClosedAt,
				MergedAt:     mr.MergedAt,
			}
			if mr.Author != nil {
				record.Author = models.User{Name: mr.Author.Name, Username: mr.Author.Username}
			}
			if mr.CreatedAt != nil {
				record.CreatedAt = *mr.CreatedAt
			}

			annotations, err := m.mergeRequestAnnotations(ctx, mr.IID)
			if err != nil {
				return nil, err
			}
			record.Annotations = annotations
			out = append(out, record)
		}

		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (m *GitLabMiner) mergeRequestAnnotations(ctx context.Context, iid int) ([]models.Annotation, error) {
	var out []models.Annotation

	noteOpt := &gitlab.ListMergeRequestNotesOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		notes, resp, err := m.client.Notes.ListMergeRequestNotes(m.project, iid, noteOpt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gperrors.Network(err, fmt.Sprintf("failed to list notes for merge request %d", iid))
		}
		for _, n := range notes {
			out = append(out, noteAnnotation(n))
		}
		if resp.NextPage == 0 {
			break
		}
		noteOpt.Page = resp.NextPage
	}

	labelOpt := &gitlab.ListLabelEventsOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		events, resp, err := m.client.ResourceLabelEvents.ListMergeRequestsLabelEvents(m.project, iid, labelOpt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gperrors.Network(err, fmt.Sprintf("failed to list label events for merge request %d", iid))
		}
		for _, e := range events {
			out = append(out, labelAnnotation(e))
		}
		if resp.NextPage == 0 {
			break
		}
		labelOpt.Page = resp.NextPage
	}

	awardOpt := &gitlab.ListAwardEmojiOptions{PerPage: 100}
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		awards, resp, err := m.client.AwardEmoji.ListMergeRequestAwardEmoji(m.project, iid, awardOpt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gperrors.Network(err, fmt.Sprintf("failed to list award emoji for merge request %d", iid))
		}
		for _, a := range awards {
			out = append(out, awardAnnotation(a))
		}
		if resp.NextPage == 0 {
			break
		}
		awardOpt.Page = resp.NextPage
	}

	return out, nil
}

func (m *GitLabMiner) mineTags(ctx context.Context) ([]models.Tag, error) {
	opt := &gitlab.ListTagsOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}

	var out []models.Tag
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		tags, resp, err := m.client.Tags.ListTags(m.project, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, gperrors.Network(err, "failed to list tags")
		}

		for _, t := range tags {
			tag := models.Tag{
				Name:    t.Name,
				Message: t.Message,
			}
			if t.Commit != nil {
				tag.SHA = t.Commit.ID
				tag.Author = models.User{Name: t.Commit.AuthorName, Email: t.Commit.AuthorEmail}
				if t.Commit.CommittedDate != nil {
					tag.CreatedAt = *t.Commit.CommittedDate
				}
			}
			out = append(out, tag)
		}

		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

// releasePage mirrors the fields of the releases endpoint this miner
// needs, including evidences which the client library does not expose.
type releasePage struct {
	TagName     string     `json:"tag_name"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	CreatedAt   *time.Time `json:"created_at"`
	ReleasedAt  *time.Time `json:"released_at"`
	Author      struct {
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"author"`
	Assets struct {
		Sources []struct {
			Format string `json:"format"`
			URL    string `json:"url"`
		} `json:"sources"`
		Links []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"links"`
	} `json:"assets"`
	Evidences []struct {
		SHA         string     `json:"sha"`
		Filepath    string     `json:"filepath"`
		CollectedAt *time.Time `json:"collected_at"`
	} `json:"evidences"`
}

func (m *GitLabMiner) mineReleases(ctx context.Context) ([]models.Release, error) {
	path := fmt.Sprintf("projects/%s/releases", url.PathEscape(m.project))

	var out []models.Release
	page := 1
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}

		opt := struct {
			Page    int `url:"page"`
			PerPage int `url:"per_page"`
		}{Page: page, PerPage: 100}

		req, err := m.client.NewRequest(http.MethodGet, path, opt, []gitlab.RequestOptionFunc{gitlab.WithContext(ctx)})
		if err != nil {
			return nil, gperrors.Network(err, "failed to build releases request")
		}

		var releases []releasePage
		resp, err := m.client.Do(req, &releases)
		if err != nil {
			return nil, gperrors.Network(err, "failed to list releases")
		}

		for _, r := range releases {
			release := models.Release{
				Name:     r.Name,
				Body:     r.Description,
				TagName:  r.TagName,
				Platform: platformGitLab,
			}
			if r.Author.Name != "" || r.Author.Username != "" {
				release.Author = &models.User{Name: r.Author.Name, Username: r.Author.Username}
			}
			if r.CreatedAt != nil {
				release.CreatedAt = *r.CreatedAt
			}
			if r.ReleasedAt != nil {
				release.ReleasedAt = *r.ReleasedAt
			}
			for _, s := range r.Assets.Sources {
				release.Assets = append(release.Assets, models.Asset{URL: s.URL, Format: s.Format})
			}
			for _, l := range r.Assets.Links {
				release.Assets = append(release.Assets, models.Asset{URL: l.URL, Format: l.Name})
			}
			for _, e := range r.Evidences {
				ev := models.Evidence{SHA: e.SHA, URL: e.Filepath}
				if e.CollectedAt != nil {
					ev.CollectedAt = *e.CollectedAt
				}
				release.Evidence = append(release.Evidence, ev)
			}
			out = append(out, release)
		}

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}
	return out, nil
}
