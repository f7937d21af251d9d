package model

import "time"

// PullRequest is the snapshot of a GitHub pull request that actions and rule
// conditions read from.
type PullRequest struct {
	Number              int
	RepoFullName        string // Base repository, "owner/repo".
	RepoID              int64
	Title               string
	Body                string
	Author              string
	Status              PRStatus
	IsDraft             bool
	Locked              bool
	URL                 string
	Branch              string // Head ref.
	BaseBranch          string
	HeadSHA             string
	BaseSHA             string
	HeadRepoFullName    string // Empty when the head repository was deleted.
	HeadRepoID          int64
	MaintainerCanModify bool
	MergeableState      string // clean, dirty, blocked, behind, unstable, unknown...
	MergedBy            string
	Milestone           string
	Labels              []string
	Assignees           []string
	RequestedReviewers  []string
	OpenedAt            time.Time
	UpdatedAt           time.Time
}

// FromFork reports whether the head branch lives in another repository.
func (pr PullRequest) FromFork() bool {
	return pr.HeadRepoID != pr.RepoID
}

// HeadRepoDeleted reports whether the head repository no longer exists.
func (pr PullRequest) HeadRepoDeleted() bool {
	return pr.HeadRepoFullName == ""
}

// Conflicting reports whether GitHub computed merge conflicts with the base.
func (pr PullRequest) Conflicting() bool {
	return pr.MergeableState == "dirty"
}

// Commit is a pull request commit together with its parent SHAs.
type Commit struct {
	SHA        string
	ParentSHAs []string
}
