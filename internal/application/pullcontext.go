package application

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
)

const workflowsDir = ".github/workflows"

// PullContext implements driven.PullContext over the GitHub client. Remote
// facts are fetched on first use and memoised for the lifetime of the value,
// so a PullContext should not outlive one evaluation pass.
type PullContext struct {
	client driven.GitHubClient
	pull   model.PullRequest

	mu       sync.Mutex
	isBehind *bool
	files    []string
	loaded   bool
}

var _ driven.PullContext = (*PullContext)(nil)

// NewPullContext fetches the pull request and wraps it.
func NewPullContext(ctx context.Context, client driven.GitHubClient, repoFullName string, prNumber int) (*PullContext, error) {
	pr, err := client.FetchPullRequest(ctx, repoFullName, prNumber)
	if err != nil {
		return nil, fmt.Errorf("fetching pull request %s#%d: %w", repoFullName, prNumber, err)
	}
	return NewPullContextFromPull(client, *pr), nil
}

// NewPullContextFromPull wraps an already fetched pull request.
func NewPullContextFromPull(client driven.GitHubClient, pull model.PullRequest) *PullContext {
	return &PullContext{client: client, pull: pull}
}

func (c *PullContext) Pull() model.PullRequest {
	return c.pull
}

// IsBehind reports whether none of the pull request commits has the current
// base branch head as a parent.
func (c *PullContext) IsBehind(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isBehind != nil {
		return *c.isBehind, nil
	}

	baseHead, err := c.client.FetchBranchHeadSHA(ctx, c.pull.RepoFullName, c.pull.BaseBranch)
	if err != nil {
		return false, fmt.Errorf("fetching head of %s: %w", c.pull.BaseBranch, err)
	}
	commits, err := c.client.FetchPullCommits(ctx, c.pull.RepoFullName, c.pull.Number)
	if err != nil {
		return false, fmt.Errorf("fetching commits of %s#%d: %w", c.pull.RepoFullName, c.pull.Number, err)
	}

	behind := true
	for _, commit := range commits {
		for _, parent := range commit.ParentSHAs {
			if parent == baseHead {
				behind = false
			}
		}
	}
	c.isBehind = &behind
	return behind, nil
}

// GitHubWorkflowChanged reports whether any changed file lives under
// .github/workflows.
func (c *PullContext) GitHubWorkflowChanged(ctx context.Context) (bool, error) {
	files, err := c.Files(ctx)
	if err != nil {
		return false, err
	}
	for _, f := range files {
		if strings.HasPrefix(f, workflowsDir) {
			return true, nil
		}
	}
	return false, nil
}

// Files returns the paths changed by the pull request.
func (c *PullContext) Files(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.files, nil
	}
	files, err := c.client.FetchPullFiles(ctx, c.pull.RepoFullName, c.pull.Number)
	if err != nil {
		return nil, fmt.Errorf("fetching files of %s#%d: %w", c.pull.RepoFullName, c.pull.Number, err)
	}
	c.files = files
	c.loaded = true
	return files, nil
}

// Attributes returns the values rule conditions and templates refer to.
// Multi-word attribute names use underscores.
func (c *PullContext) Attributes(ctx context.Context) (map[string]any, error) {
	files, err := c.Files(ctx)
	if err != nil {
		return nil, err
	}

	pr := c.pull
	return map[string]any{
		"number":           pr.Number,
		"title":            pr.Title,
		"body":             pr.Body,
		"author":           pr.Author,
		"base":             pr.BaseBranch,
		"head":             pr.Branch,
		"repository":       pr.RepoFullName,
		"head_repository":  pr.HeadRepoFullName,
		"draft":            pr.IsDraft,
		"locked":           pr.Locked,
		"closed":           pr.Status != model.PRStatusOpen,
		"merged":           pr.Status == model.PRStatusMerged,
		"merged_by":        pr.MergedBy,
		"conflict":         pr.Conflicting(),
		"milestone":        pr.Milestone,
		"label":            nonNil(pr.Labels),
		"assignee":         nonNil(pr.Assignees),
		"review_requested": nonNil(pr.RequestedReviewers),
		"files":            nonNil(files),
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
