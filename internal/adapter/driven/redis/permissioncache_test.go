package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

func setupCache(t *testing.T) (*PermissionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	cache := New(client, 0)
	t.Cleanup(func() { _ = client.Close() })
	return cache, mr
}

func TestPermissionCache_Miss(t *testing.T) {
	cache, _ := setupCache(t)

	perm, ok, err := cache.Get(context.Background(), "org/repo", "octocat")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, perm)
}

func TestPermissionCache_SetAndGet(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "org/repo", "octocat", model.PermissionWrite))

	perm, ok, err := cache.Get(ctx, "org/repo", "octocat")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.PermissionWrite, perm)

	assert.Equal(t, "write", mr.HGet("users_permission/org/repo", "octocat"))
	assert.Equal(t, DefaultTTL, mr.TTL("users_permission/org/repo"))

	_, ok, err = cache.Get(ctx, "org/other", "octocat")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPermissionCache_Expires(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "org/repo", "octocat", model.PermissionAdmin))
	mr.FastForward(DefaultTTL + time.Second)

	_, ok, err := cache.Get(ctx, "org/repo", "octocat")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPermissionCache_Invalidate(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "org/repo", "octocat", model.PermissionWrite))
	require.NoError(t, cache.Set(ctx, "org/repo", "hubot", model.PermissionRead))
	require.NoError(t, cache.Invalidate(ctx, "org/repo"))

	for _, login := range []string{"octocat", "hubot"} {
		_, ok, err := cache.Get(ctx, "org/repo", login)
		require.NoError(t, err)
		assert.False(t, ok, login)
	}
}

func TestPermissionCache_ServerDown(t *testing.T) {
	cache, mr := setupCache(t)
	mr.Close()

	_, _, err := cache.Get(context.Background(), "org/repo", "octocat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading permission of octocat on org/repo")
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Permissions.Set(context.Background(), "org/repo", "octocat", model.PermissionMaintain))
	assert.Equal(t, "maintain", mr.HGet("users_permission/org/repo", "octocat"))

	_, err = store.Queue.Add(context.Background(), "org/repo", "main", 4)
	require.NoError(t, err)
	assert.True(t, mr.Exists("merge-queue~org/repo~main"))

	_, err = Connect(context.Background(), "not a url")
	require.Error(t, err)
}
