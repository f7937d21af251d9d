package model

import "fmt"

// BranchUpdateStatus classifies the outcome of a git-level branch update.
type BranchUpdateStatus int

const (
	// UpdateUnknown is the zero value. It never describes a real update.
	UpdateUnknown BranchUpdateStatus = iota
	// UpdateSucceeded means the branch was rewritten and pushed.
	UpdateSucceeded
	// UpdateAuthenticationFailed means the identity used for the update was
	// missing or rejected by the remote.
	UpdateAuthenticationFailed
	// UpdateFailed covers conflicts, rejected or stale pushes and concurrent
	// modification of the head branch.
	UpdateFailed
)

func (s BranchUpdateStatus) String() string {
	switch s {
	case UpdateUnknown:
		return "unknown"
	case UpdateSucceeded:
		return "succeeded"
	case UpdateAuthenticationFailed:
		return "authentication_failed"
	case UpdateFailed:
		return "failed"
	default:
		return fmt.Sprintf("BranchUpdateStatus(%d)", int(s))
	}
}

// BranchUpdateOutcome is returned by the branch updater for every recognized
// outcome. Unrecognized faults are returned as plain errors instead.
type BranchUpdateOutcome struct {
	Status  BranchUpdateStatus
	Message string // Human-readable reason; empty on success.
}

// UpdateOK is the outcome of a successful branch update.
func UpdateOK() BranchUpdateOutcome {
	return BranchUpdateOutcome{Status: UpdateSucceeded}
}

// AuthenticationFailure builds an UpdateAuthenticationFailed outcome.
func AuthenticationFailure(format string, args ...any) BranchUpdateOutcome {
	return BranchUpdateOutcome{Status: UpdateAuthenticationFailed, Message: fmt.Sprintf(format, args...)}
}

// BranchUpdateFailure builds an UpdateFailed outcome.
func BranchUpdateFailure(format string, args ...any) BranchUpdateOutcome {
	return BranchUpdateOutcome{Status: UpdateFailed, Message: fmt.Sprintf(format, args...)}
}
