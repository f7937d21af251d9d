package model

// PRStatus represents the state of a pull request.
type PRStatus string

const (
	PRStatusOpen   PRStatus = "open"
	PRStatusClosed PRStatus = "closed"
	PRStatusMerged PRStatus = "merged"
)

// Permission is a collaborator permission level on a repository.
type Permission string

const (
	PermissionAdmin    Permission = "admin"
	PermissionMaintain Permission = "maintain"
	PermissionWrite    Permission = "write"
	PermissionTriage   Permission = "triage"
	PermissionRead     Permission = "read"
	PermissionNone     Permission = "none"
)

// CanWrite reports whether the permission allows pushing to the repository,
// which is the bar for running commands.
func (p Permission) CanWrite() bool {
	switch p {
	case PermissionAdmin, PermissionMaintain, PermissionWrite:
		return true
	default:
		return false
	}
}
