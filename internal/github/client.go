// Package github wraps the GitHub API as the pipeline's provider client.
package github

import (
	"context"
	"fmt"
	"time"

	gogithub "github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
)

// commitPageCap bounds how many commits one scan pulls per repository.
const commitPageCap = 50

// shortHashLen is the stored length of linked commit hashes.
const shortHashLen = 8

// Repo is one repository the organization owns.
type Repo struct {
	Name     string
	FullName string
	URL      string
}

// Issue is one issue record; pull requests are excluded at the client.
type Issue struct {
	Number    int64
	Title     string
	Body      string
	State     string // "open" or "closed"
	Labels    []string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  time.Time // zero when still open
}

// Commit is one commit record, most-recent-first in listings.
type Commit struct {
	Hash    string // short hash
	Message string
	Author  string
	Date    time.Time
	URL     string
}

// Client lists repositories, issues, and commits for a single organization.
type Client struct {
	gh      *gogithub.Client
	org     string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewClient creates a provider client authenticated with a personal access
// token. timeout bounds each API call.
func NewClient(token, org string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		gh:      gogithub.NewClient(nil).WithAuthToken(token),
		org:     org,
		timeout: timeout,
		logger:  logger.With().Str("component", "github").Logger(),
	}
}

// Org returns the configured organization name.
func (c *Client) Org() string { return c.org }

// ListOrgRepos returns all repositories of the configured organization.
func (c *Client) ListOrgRepos(ctx context.Context) ([]Repo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &gogithub.RepositoryListByOrgOptions{
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	var repos []Repo
	for {
		page, resp, err := c.gh.Repositories.ListByOrg(ctx, c.org, opts)
		if err != nil {
			return nil, fmt.Errorf("listing repos for %s: %w", c.org, err)
		}
		for _, r := range page {
			repos = append(repos, Repo{
				Name:     r.GetName(),
				FullName: r.GetFullName(),
				URL:      r.GetHTMLURL(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return repos, nil
}

// ListIssues returns issues of repo updated at or after since, newest first.
// Pull-request-shaped entries are dropped.
func (c *Client) ListIssues(ctx context.Context, repo string, since time.Time) ([]Issue, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &gogithub.IssueListByRepoOptions{
		State:       "all",
		Since:       since,
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	var issues []Issue
	for {
		page, resp, err := c.gh.Issues.ListByRepo(ctx, c.org, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issues for %s/%s: %w", c.org, repo, err)
		}
		for _, is := range page {
			if is.IsPullRequest() {
				continue
			}
			labels := make([]string, 0, len(is.Labels))
			for _, l := range is.Labels {
				labels = append(labels, l.GetName())
			}
			issue := Issue{
				Number:    int64(is.GetNumber()),
				Title:     is.GetTitle(),
				Body:      is.GetBody(),
				State:     is.GetState(),
				Labels:    labels,
				URL:       is.GetHTMLURL(),
				CreatedAt: is.GetCreatedAt().Time,
				UpdatedAt: is.GetUpdatedAt().Time,
			}
			if is.ClosedAt != nil {
				issue.ClosedAt = is.GetClosedAt().Time
			}
			issues = append(issues, issue)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return issues, nil
}

// ListRecentCommits returns up to 50 commits of repo since the watermark,
// most recent first, with short hashes.
func (c *Client) ListRecentCommits(ctx context.Context, repo string, since time.Time) ([]Commit, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := &gogithub.CommitsListOptions{
		Since:       since,
		ListOptions: gogithub.ListOptions{PerPage: commitPageCap},
	}

	page, _, err := c.gh.Repositories.ListCommits(ctx, c.org, repo, opts)
	if err != nil {
		return nil, fmt.Errorf("listing commits for %s/%s: %w", c.org, repo, err)
	}

	commits := make([]Commit, 0, len(page))
	for _, rc := range page {
		if len(commits) >= commitPageCap {
			break
		}
		commit := Commit{
			Hash:    ShortHash(rc.GetSHA()),
			Message: rc.GetCommit().GetMessage(),
			Author:  "unknown",
			URL:     rc.GetHTMLURL(),
		}
		if author := rc.GetCommit().GetAuthor(); author != nil {
			if author.GetName() != "" {
				commit.Author = author.GetName()
			}
			commit.Date = author.GetDate().Time
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// ShortHash truncates a full commit SHA to the stored length.
func ShortHash(sha string) string {
	if len(sha) > shortHashLen {
		return sha[:shortHashLen]
	}
	return sha
}
