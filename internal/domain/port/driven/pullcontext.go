package driven

import (
	"context"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

// PullContext is the per pull request facade handed to actions for a single
// evaluation. Derived facts are memoised for the lifetime of the value.
type PullContext interface {
	// Pull returns the pull request snapshot the context was built from.
	Pull() model.PullRequest
	// IsBehind reports whether no commit of the pull request has the current
	// base branch head as a parent.
	IsBehind(ctx context.Context) (bool, error)
	// GitHubWorkflowChanged reports whether the pull request touches any file
	// under .github/workflows.
	GitHubWorkflowChanged(ctx context.Context) (bool, error)
	// Attributes returns the pull request attributes exposed to templates and
	// rule conditions, keyed by attribute name.
	Attributes(ctx context.Context) (map[string]any, error)
}
