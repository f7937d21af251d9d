package github

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubWriter = (*Client)(nil)

// CreateCheckRun reports result as a check run on headSHA. GitHub requires a
// summary whenever an output is given, so an empty summary repeats the title.
func (c *Client) CreateCheckRun(ctx context.Context, repoFullName string, headSHA string, name string, result model.Result) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	summary := result.Summary
	if summary == "" {
		summary = result.Title
	}

	opts := gh.CreateCheckRunOptions{
		Name:    name,
		HeadSHA: headSHA,
		Output: &gh.CheckRunOutput{
			Title:   gh.Ptr(result.Title),
			Summary: gh.Ptr(summary),
		},
	}
	if result.Conclusion.Completed() {
		opts.Status = gh.Ptr("completed")
		opts.Conclusion = gh.Ptr(string(result.Conclusion))
	} else {
		opts.Status = gh.Ptr("in_progress")
	}

	_, resp, err := c.gh.Checks.CreateCheckRun(ctx, owner, repo, opts)
	if err != nil {
		return fmt.Errorf("creating check run %q on %s@%s: %w", name, repoFullName, headSHA, err)
	}

	c.logRateLimit(resp, repoFullName+"/check-runs", 0, 1)

	return nil
}

// CreateIssueComment creates a top-level (non-diff) comment on a pull request.
func (c *Client) CreateIssueComment(ctx context.Context, repoFullName string, prNumber int, body string) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}

	_, _, err = c.gh.Issues.CreateComment(ctx, owner, repo, prNumber, &gh.IssueComment{
		Body: gh.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("creating issue comment on %s#%d: %w", repoFullName, prNumber, err)
	}

	return nil
}
