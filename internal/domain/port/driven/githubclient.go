package driven

import (
	"context"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

// GitHubClient defines the driven port for reading from the GitHub API.
type GitHubClient interface {
	FetchPullRequest(ctx context.Context, repoFullName string, prNumber int) (*model.PullRequest, error)
	// FetchBranchHeadSHA returns the SHA the named branch currently points at.
	FetchBranchHeadSHA(ctx context.Context, repoFullName string, branch string) (string, error)
	// FetchPullCommits returns the commits of a pull request with their parents.
	FetchPullCommits(ctx context.Context, repoFullName string, prNumber int) ([]model.Commit, error)
	// FetchPullFiles returns the paths of every file changed by a pull request.
	FetchPullFiles(ctx context.Context, repoFullName string, prNumber int) ([]string, error)
	// FetchCollaboratorPermission returns the permission level of login on the
	// repository. Non-collaborators get model.PermissionNone.
	FetchCollaboratorPermission(ctx context.Context, repoFullName string, login string) (model.Permission, error)
	// FetchFileContent returns the raw content of path at ref. Returns
	// model.ErrNotFound when the file does not exist.
	FetchFileContent(ctx context.Context, repoFullName string, path string, ref string) ([]byte, error)
}
