// Package redis implements the PermissionCache and MergeQueue ports on one
// shared Redis connection.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
	"github.com/ericfisherdev/prpilot/internal/logging"
)

// Compile-time interface satisfaction check.
var _ driven.PermissionCache = (*PermissionCache)(nil)

// DefaultTTL bounds how long a permission level is trusted.
const DefaultTTL = time.Hour

const keyPrefix = "users_permission/"

// PermissionCache stores login → permission in the hash
// users_permission/<owner>/<repo>. The whole hash expires DefaultTTL after
// the last write.
type PermissionCache struct {
	client goredis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// New wraps an existing client. ttl <= 0 means DefaultTTL.
func New(client goredis.UniversalClient, ttl time.Duration) *PermissionCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PermissionCache{client: client, ttl: ttl, logger: logging.Named("redis")}
}

// Get returns the cached permission of login. ok is false on a miss.
func (c *PermissionCache) Get(ctx context.Context, repoFullName, login string) (model.Permission, bool, error) {
	val, err := c.client.HGet(ctx, permissionKey(repoFullName), login).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading permission of %s on %s: %w", login, repoFullName, err)
	}
	return model.Permission(val), true, nil
}

// Set caches perm for login and refreshes the hash expiry.
func (c *PermissionCache) Set(ctx context.Context, repoFullName, login string, perm model.Permission) error {
	key := permissionKey(repoFullName)
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, key, login, string(perm))
		pipe.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("caching permission of %s on %s: %w", login, repoFullName, err)
	}
	return nil
}

// Invalidate drops every cached permission of the repository.
func (c *PermissionCache) Invalidate(ctx context.Context, repoFullName string) error {
	if err := c.client.Del(ctx, permissionKey(repoFullName)).Err(); err != nil {
		return fmt.Errorf("invalidating permissions of %s: %w", repoFullName, err)
	}
	c.logger.DebugContext(ctx, "permissions invalidated", "repo", repoFullName)
	return nil
}

func permissionKey(repoFullName string) string {
	return keyPrefix + repoFullName
}
