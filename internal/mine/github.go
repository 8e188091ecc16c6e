package mine

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/logging"
	"github.com/traceworks/gitprov/internal/models"
)

const platformGitHub = "github"

// GitHubMiner extracts issues, pull requests, commit comments, tags and
// releases from the GitHub API.
type GitHubMiner struct {
	client      *github.Client
	owner       string
	repo        string
	rateLimiter *rate.Limiter
}

// NewGitHubMiner creates a miner for owner/repo.
func NewGitHubMiner(token, owner, repo string, reqPerSec int) *GitHubMiner {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	if reqPerSec <= 0 {
		// GitHub allows 5,000 requests/hour, roughly 1.4 req/sec.
		reqPerSec = 1
	}
	return &GitHubMiner{
		client:      client,
		owner:       owner,
		repo:        repo,
		rateLimiter: rate.NewLimiter(rate.Limit(reqPerSec), 1),
	}
}

func (m *GitHubMiner) Name() string { return "github" }

func (m *GitHubMiner) Mine(ctx context.Context) (models.RecordSet, error) {
	var records models.RecordSet

	commits, err := m.mineCommits(ctx)
	if err != nil {
		return models.RecordSet{}, err
	}
	records.Commits = commits

	issues, mergeRequests, err := m.mineIssuesAndPulls(ctx)
	if err != nil {
		return models.RecordSet{}, err
	}
	records.Issues = issues
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

	logging.Info("mined github repository", "owner", m.owner, "repo", m.repo,
		"commits", len(records.Commits), "issues", len(records.Issues),
		"pull_requests", len(records.MergeRequests),
		"tags", len(records.Tags), "releases", len(records.Releases))
	return records, nil
}

func (m *GitHubMiner) wait(ctx context.Context) error {
	if err := m.rateLimiter.Wait(ctx); err != nil {
		return gperrors.Network(err, "rate limiter interrupted")
	}
	return nil
}

func ghUser(u *github.User) models.User {
	if u == nil {
		return models.User{}
	}
	name := u.GetName()
	if name == "" {
		name = u.GetLogin()
	}
	return models.User{
		Name:     name,
		Email:    u.GetEmail(),
		Username: u.GetLogin(),
		Bot:      u.GetType() == "Bot",
	}
}

// mineCommits lists commits and attaches repository-wide commit
// comments to their commit.
func (m *GitHubMiner) mineCommits(ctx context.Context) ([]models.Commit, error) {
	commentsBySHA, err := m.commitComments(ctx)
	if err != nil {
		return nil, err
	}

	opts := &github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var out []models.Commit
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		commits, resp, err := m.client.Repositories.ListCommits(ctx, m.owner, m.repo, opts)
		if err != nil {
			return nil, gperrors.Network(err, "failed to list commits")
		}

		for _, c := range commits {
			commit := models.Commit{
				SHA:         c.GetSHA(),
				URL:         c.GetHTMLURL(),
				Platform:    platformGitHub,
				Author:      ghUser(c.Author),
				Annotations: commentsBySHA[c.GetSHA()],
			}
			if git := c.GetCommit(); git != nil {
				if a := git.GetAuthor(); a != nil {
					if commit.Author.Name == "" {
						commit.Author.Name = a.GetName()
					}
					if commit.Author.Email == "" {
						commit.Author.Email = a.GetEmail()
					}
					commit.AuthoredAt = a.GetDate().Time
				}
				if cm := git.GetCommitter(); cm != nil {
					commit.CommittedAt = cm.GetDate().Time
				}
			}
			out = append(out, commit)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (m *GitHubMiner) commitComments(ctx context.Context) (map[string][]models.Annotation, error) {
	opts := &github.ListOptions{PerPage: 100}
	bySHA := make(map[string][]models.Annotation)
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		comments, resp, err := m.client.Repositories.ListComments(ctx, m.owner, m.repo, opts)
		if err != nil {
			return nil, gperrors.Network(err, "failed to list commit comments")
		}

		for _, c := range comments {
			sha := c.GetCommitID()
			bySHA[sha] = append(bySHA[sha], models.Annotation{
				ID:        strconv.FormatInt(c.GetID(), 10),
				Kind:      models.AnnotationNote,
				Body:      c.GetBody(),
				Annotator: ghUser(c.User),
				CreatedAt: c.GetCreatedAt().Time,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return bySHA, nil
}

// mineIssuesAndPulls lists issues including pull requests and splits
// them. Pull requests reuse the issue comment and event streams.
func (m *GitHubMiner) mineIssuesAndPulls(ctx context.Context) ([]models.Issue, []models.MergeRequest, error) {
	opts := &github.IssueListByRepoOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var issues []models.Issue
	var pulls []models.MergeRequest
	for {
		if err := m.wait(ctx); err != nil {
			return nil, nil, err
		}
		list, resp, err := m.client.Issues.ListByRepo(ctx, m.owner, m.repo, opts)
		if err != nil {
			return nil, nil, gperrors.Network(err, "failed to list issues")
		}

		for _, i := range list {
			annotations, err := m.issueAnnotations(ctx, i.GetNumber())
			if err != nil {
				return nil, nil, err
			}

			if i.IsPullRequest() {
				pull, err := m.pullRequest(ctx, i.GetNumber())
				if err != nil {
					return nil, nil, err
				}
				pull.Annotations = annotations
				pulls = append(pulls, pull)
				continue
			}

			issue := models.Issue{
				ID:          strconv.FormatInt(i.GetID(), 10),
				IID:         strconv.Itoa(i.GetNumber()),
				Platform:    platformGitHub,
				Title:       i.GetTitle(),
				Body:        i.GetBody(),
				URL:         i.GetHTMLURL(),
				Author:      ghUser(i.User),
				CreatedAt:   i.GetCreatedAt().Time,
				Annotations: annotations,
			}
			if t := i.ClosedAt; t != nil {
				closed := t.Time
				issue.ClosedAt = &closed
			}
			issues = append(issues, issue)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return issues, pulls, nil
}

func (m *GitHubMiner) pullRequest(ctx context.Context, number int) (models.MergeRequest, error) {
	if err := m.wait(ctx); err != nil {
		return models.MergeRequest{}, err
	}
	pr, _, err := m.client.PullRequests.Get(ctx, m.owner, m.repo, number)
	if err != nil {
		return models.MergeRequest{}, gperrors.Network(err, fmt.Sprintf("failed to get pull request %d", number))
	}

	out := models.MergeRequest{
		ID:           strconv.FormatInt(pr.GetID(), 10),
		IID:          strconv.Itoa(number),
		Platform:     platformGitHub,
		Title:        pr.GetTitle(),
		Body:         pr.GetBody(),
		URL:          pr.GetHTMLURL(),
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		Author:       ghUser(pr.User),
		CreatedAt:    pr.GetCreatedAt().Time,
	}
	if t := pr.ClosedAt; t != nil {
		closed := t.Time
		out.ClosedAt = &closed
	}
	if t := pr.MergedAt; t != nil {
		merged := t.Time
		out.MergedAt = &merged
	}
	return out, nil
}

// issueAnnotations merges the comment stream with labeled and
// unlabeled timeline events, both ordered by creation time later in
// the builders. GitHub reactions carry no timestamp and are skipped.
func (m *GitHubMiner) issueAnnotations(ctx context.Context, number int) ([]models.Annotation, error) {
	var out []models.Annotation

	commentOpts := &github.IssueListCommentsOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		comments, resp, err := m.client.Issues.ListComments(ctx, m.owner, m.repo, number, commentOpts)
		if err != nil {
			return nil, gperrors.Network(err, fmt.Sprintf("failed to list comments for issue %d", number))
		}
		for _, c := range comments {
			out = append(out, models.Annotation{
				ID:        strconv.FormatInt(c.GetID(), 10),
				Kind:      models.AnnotationNote,
				Body:      c.GetBody(),
				Annotator: ghUser(c.User),
				CreatedAt: c.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		commentOpts.Page = resp.NextPage
	}

	eventOpts := &github.ListOptions{PerPage: 100}
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		events, resp, err := m.client.Issues.ListIssueEvents(ctx, m.owner, m.repo, number, eventOpts)
		if err != nil {
			return nil, gperrors.Network(err, fmt.Sprintf("failed to list events for issue %d", number))
		}
		for _, e := range events {
			kind := models.AnnotationEvent
			body := e.GetEvent()
			if label := e.GetLabel(); label != nil {
				kind = models.AnnotationLabel
				body = e.GetEvent() + " " + label.GetName()
			}
			out = append(out, models.Annotation{
				ID:        strconv.FormatInt(e.GetID(), 10),
				Kind:      kind,
				Body:      body,
				Annotator: ghUser(e.Actor),
				CreatedAt: e.GetCreatedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		eventOpts.Page = resp.NextPage
	}

	return out, nil
}

// mineTags resolves each tag's commit for author and date, since the
// tag listing carries neither.
func (m *GitHubMiner) mineTags(ctx context.Context) ([]models.Tag, error) {
	opts := &github.ListOptions{PerPage: 100}
	var out []models.Tag
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		tags, resp, err := m.client.Repositories.ListTags(ctx, m.owner, m.repo, opts)
		if err != nil {
			return nil, gperrors.Network(err, "failed to list tags")
		}

		for _, t := range tags {
			tag := models.Tag{
				Name: t.GetName(),
				SHA:  t.GetCommit().GetSHA(),
			}
			if err := m.wait(ctx); err != nil {
				return nil, err
			}
			commit, _, err := m.client.Repositories.GetCommit(ctx, m.owner, m.repo, tag.SHA, nil)
			if err != nil {
				logging.Warn("failed to resolve tag commit", "tag", tag.Name, "error", err)
			} else if git := commit.GetCommit(); git != nil {
				if a := git.GetAuthor(); a != nil {
					tag.Author = models.User{Name: a.GetName(), Email: a.GetEmail()}
					tag.CreatedAt = a.GetDate().Time
				}
			}
			out = append(out, tag)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (m *GitHubMiner) mineReleases(ctx context.Context) ([]models.Release, error) {
	opts := &github.ListOptions{PerPage: 100}
	var out []models.Release
	for {
		if err := m.wait(ctx); err != nil {
			return nil, err
		}
		releases, resp, err := m.client.Repositories.ListReleases(ctx, m.owner, m.repo, opts)
		if err != nil {
			return nil, gperrors.Network(err, "failed to list releases")
		}

		for _, r := range releases {
			release := models.Release{
				Name:      r.GetName(),
				Body:      r.GetBody(),
				TagName:   r.GetTagName(),
				Platform:  platformGitHub,
				CreatedAt: r.GetCreatedAt().Time,
			}
			if release.Name == "" {
				release.Name = r.GetTagName()
			}
			if u := r.Author; u != nil {
				author := ghUser(u)
				release.Author = &author
			}
			if t := r.PublishedAt; t != nil {
				release.ReleasedAt = t.Time
			}
			for _, a := range r.Assets {
				release.Assets = append(release.Assets, models.Asset{
					URL:    a.GetBrowserDownloadURL(),
					Format: a.GetContentType(),
				})
			}
			out = append(out, release)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// SplitRepoPath splits an "owner/repo" path.
func SplitRepoPath(path string) (owner, repo string, err error) {
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i == 0 || i == len(path)-1 {
				break
			}
			return path[:i], path[i+1:], nil
		}
	}
	return "", "", gperrors.Configf("project path %q is not owner/repo", path)
}
