package driven

import (
	"context"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

// PermissionCache caches collaborator permission levels per repository.
type PermissionCache interface {
	// Get returns the cached permission. ok is false on a cache miss.
	Get(ctx context.Context, repoFullName, login string) (perm model.Permission, ok bool, err error)
	Set(ctx context.Context, repoFullName, login string, perm model.Permission) error
	// Invalidate drops every cached permission of the repository.
	Invalidate(ctx context.Context, repoFullName string) error
}
