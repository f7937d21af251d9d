package driven

import (
	"context"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

// BranchUpdater rewrites a pull request head branch.
type BranchUpdater interface {
	// PreRebaseCheck returns a Result when the pull request cannot be rebased
	// at all, nil otherwise. It has no side effects.
	PreRebaseCheck(pctx PullContext) *model.Result

	// RebaseWithGit rebases the head branch onto the base branch and pushes
	// it. botAccount selects the identity; empty means the default one.
	// Recognized failures are reported through the outcome, anything else
	// through the error.
	RebaseWithGit(ctx context.Context, pctx PullContext, botAccount string) (model.BranchUpdateOutcome, error)
}
