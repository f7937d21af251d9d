package driven

import "context"

// MergeQueue orders the pull requests waiting to be merged into a base
// branch. Positions are zero based.
type MergeQueue interface {
	// Add enqueues the pull request behind the ones already queued on ref
	// and drops it from the other queues of the repository. added is false
	// when it was already queued on ref, in which case it keeps its place.
	Add(ctx context.Context, repoFullName, ref string, number int) (added bool, err error)
	// Remove dequeues the pull request. removed is false when it was not
	// queued on ref.
	Remove(ctx context.Context, repoFullName, ref string, number int) (removed bool, err error)
	// Pulls lists the queue of ref, first to be merged first.
	Pulls(ctx context.Context, repoFullName, ref string) ([]int, error)
}
