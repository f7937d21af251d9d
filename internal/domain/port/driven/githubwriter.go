package driven

import (
	"context"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

// GitHubWriter defines the driven port for GitHub write operations.
// It is intentionally separate from GitHubClient (read operations) following
// the Interface Segregation Principle.
type GitHubWriter interface {
	// CreateCheckRun reports result as a completed check run named name on
	// headSHA. A pending result is reported as in progress.
	CreateCheckRun(ctx context.Context, repoFullName string, headSHA string, name string, result model.Result) error

	// CreateIssueComment creates a top-level (non-diff) comment on a pull request.
	CreateIssueComment(ctx context.Context, repoFullName string, prNumber int, body string) error
}
