// Package github implements the GitHubClient and GitHubWriter ports using the
// go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
	"github.com/ericfisherdev/prpilot/internal/logging"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com/"

// Client implements the driven.GitHubClient and driven.GitHubWriter ports.
type Client struct {
	gh     *gh.Client
	logger *slog.Logger
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  2. oauth2 (static token auth, skipped when token is empty)
//  3. httpcache (ETag-based conditional request caching)
//
// apiURL selects a GitHub Enterprise endpoint; empty means DefaultAPIURL.
func NewClient(token, apiURL string) (*Client, error) {
	cacheTransport := httpcache.NewMemoryCacheTransport()

	var transport http.RoundTripper = cacheTransport
	if token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   cacheTransport,
		}
	}

	rateLimitClient := github_ratelimit.NewClient(transport)
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return NewClientWithHTTPClient(rateLimitClient, apiURL)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. Tests use it to inject an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{
		gh:     client,
		logger: logging.Named(logging.GitHubRequester),
	}, nil
}

// FetchPullRequest retrieves a single pull request.
func (c *Client) FetchPullRequest(ctx context.Context, repoFullName string, prNumber int) (*model.PullRequest, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	pr, resp, err := c.gh.PullRequests.Get(ctx, owner, repo, prNumber)
	if err != nil {
		if isNotFound(resp) {
			return nil, fmt.Errorf("pull request %s#%d: %w", repoFullName, prNumber, model.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching pull request %s#%d: %w", repoFullName, prNumber, err)
	}

	c.logRateLimit(resp, repoFullName+"/pull", 0, 1)

	mapped := mapPullRequest(pr, repoFullName)
	return &mapped, nil
}

// FetchBranchHeadSHA returns the commit SHA the branch points at.
func (c *Client) FetchBranchHeadSHA(ctx context.Context, repoFullName string, branch string) (string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	b, resp, err := c.gh.Repositories.GetBranch(ctx, owner, repo, branch, 1)
	if err != nil {
		if isNotFound(resp) {
			return "", fmt.Errorf("branch %s of %s: %w", branch, repoFullName, model.ErrNotFound)
		}
		return "", fmt.Errorf("fetching branch %s of %s: %w", branch, repoFullName, err)
	}

	c.logRateLimit(resp, repoFullName+"/branch", 0, 1)

	return b.GetCommit().GetSHA(), nil
}

// FetchPullCommits retrieves every commit of a pull request with its parents.
// It handles pagination automatically.
func (c *Client) FetchPullCommits(ctx context.Context, repoFullName string, prNumber int) ([]model.Commit, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListOptions{PerPage: 100}
	var allCommits []model.Commit

	for {
		commits, resp, err := c.gh.PullRequests.ListCommits(ctx, owner, repo, prNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("listing commits for %s#%d (page %d): %w", repoFullName, prNumber, opts.Page, err)
		}

		c.logRateLimit(resp, repoFullName+"/commits", opts.Page, len(commits))

		for _, rc := range commits {
			parents := make([]string, 0, len(rc.Parents))
			for _, p := range rc.Parents {
				parents = append(parents, p.GetSHA())
			}
			allCommits = append(allCommits, model.Commit{SHA: rc.GetSHA(), ParentSHAs: parents})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allCommits, nil
}

// FetchPullFiles retrieves the paths changed by a pull request.
// It handles pagination automatically.
func (c *Client) FetchPullFiles(ctx context.Context, repoFullName string, prNumber int) ([]string, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListOptions{PerPage: 100}
	allFiles := []string{}

	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, prNumber, opts)
		if err != nil {
			return nil, fmt.Errorf("listing files for %s#%d (page %d): %w", repoFullName, prNumber, opts.Page, err)
		}

		c.logRateLimit(resp, repoFullName+"/files", opts.Page, len(files))

		for _, f := range files {
			allFiles = append(allFiles, f.GetFilename())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allFiles, nil
}

// FetchCollaboratorPermission returns the permission level of login on the
// repository. A 404 means the user is not a collaborator.
func (c *Client) FetchCollaboratorPermission(ctx context.Context, repoFullName string, login string) (model.Permission, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return "", err
	}

	level, resp, err := c.gh.Repositories.GetPermissionLevel(ctx, owner, repo, login)
	if err != nil {
		if isNotFound(resp) {
			return model.PermissionNone, nil
		}
		return "", fmt.Errorf("fetching permission of %s on %s: %w", login, repoFullName, err)
	}

	c.logRateLimit(resp, repoFullName+"/permission", 0, 1)

	return mapPermission(level.GetPermission()), nil
}

// FetchFileContent returns the decoded content of path at ref.
func (c *Client) FetchFileContent(ctx context.Context, repoFullName string, path string, ref string) ([]byte, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	fc, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, repo, path, &gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if isNotFound(resp) {
			return nil, fmt.Errorf("%s@%s in %s: %w", path, ref, repoFullName, model.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching %s@%s in %s: %w", path, ref, repoFullName, err)
	}
	if fc == nil {
		return nil, fmt.Errorf("%s@%s in %s is a directory: %w", path, ref, repoFullName, model.ErrNotFound)
	}

	content, err := fc.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decoding %s@%s in %s: %w", path, ref, repoFullName, err)
	}
	return []byte(content), nil
}

func (c *Client) logRateLimit(resp *gh.Response, endpoint string, page, count int) {
	if resp == nil {
		return
	}

	c.logger.Debug("github api call",
		"endpoint", endpoint,
		"page", page,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		c.logger.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func mapPullRequest(pr *gh.PullRequest, repoFullName string) model.PullRequest {
	status := model.PRStatusOpen
	if pr.GetMerged() || !pr.GetMergedAt().IsZero() {
		status = model.PRStatusMerged
	} else if pr.GetState() == "closed" {
		status = model.PRStatusClosed
	}

	labels := make([]string, 0, len(pr.Labels))
	for _, l := range pr.Labels {
		labels = append(labels, l.GetName())
	}

	assignees := make([]string, 0, len(pr.Assignees))
	for _, a := range pr.Assignees {
		assignees = append(assignees, a.GetLogin())
	}

	reviewers := make([]string, 0, len(pr.RequestedReviewers))
	for _, r := range pr.RequestedReviewers {
		reviewers = append(reviewers, r.GetLogin())
	}

	headRepo := pr.GetHead().GetRepo()
	baseRepo := pr.GetBase().GetRepo()

	return model.PullRequest{
		Number:              pr.GetNumber(),
		RepoFullName:        repoFullName,
		RepoID:              baseRepo.GetID(),
		Title:               pr.GetTitle(),
		Body:                pr.GetBody(),
		Author:              pr.GetUser().GetLogin(),
		Status:              status,
		IsDraft:             pr.GetDraft(),
		Locked:              pr.GetLocked(),
		URL:                 pr.GetHTMLURL(),
		Branch:              pr.GetHead().GetRef(),
		BaseBranch:          pr.GetBase().GetRef(),
		HeadSHA:             pr.GetHead().GetSHA(),
		BaseSHA:             pr.GetBase().GetSHA(),
		HeadRepoFullName:    headRepo.GetFullName(),
		HeadRepoID:          headRepo.GetID(),
		MaintainerCanModify: pr.GetMaintainerCanModify(),
		MergeableState:      pr.GetMergeableState(),
		MergedBy:            pr.GetMergedBy().GetLogin(),
		Milestone:           pr.GetMilestone().GetTitle(),
		Labels:              labels,
		Assignees:           assignees,
		RequestedReviewers:  reviewers,
		OpenedAt:            pr.GetCreatedAt().Time,
		UpdatedAt:           pr.GetUpdatedAt().Time,
	}
}

func mapPermission(p string) model.Permission {
	switch perm := model.Permission(p); perm {
	case model.PermissionAdmin, model.PermissionMaintain, model.PermissionWrite,
		model.PermissionTriage, model.PermissionRead:
		return perm
	default:
		return model.PermissionNone
	}
}

func isNotFound(resp *gh.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
