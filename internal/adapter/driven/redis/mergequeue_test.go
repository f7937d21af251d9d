package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupQueue(t *testing.T) (*MergeQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	q := NewMergeQueue(client)
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return q, mr
}

func TestMergeQueue_OrdersByArrival(t *testing.T) {
	q, mr := setupQueue(t)
	ctx := context.Background()

	for _, n := range []int{12, 3, 7} {
		added, err := q.Add(ctx, "org/repo", "main", n)
		require.NoError(t, err)
		assert.True(t, added)
	}

	pulls, err := q.Pulls(ctx, "org/repo", "main")
	require.NoError(t, err)
	assert.Equal(t, []int{12, 3, 7}, pulls)

	members, err := mr.ZMembers("merge-queue~org/repo~main")
	require.NoError(t, err)
	assert.Len(t, members, 3)
}

func TestMergeQueue_AddKeepsPlace(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	_, err := q.Add(ctx, "org/repo", "main", 1)
	require.NoError(t, err)
	_, err = q.Add(ctx, "org/repo", "main", 2)
	require.NoError(t, err)

	added, err := q.Add(ctx, "org/repo", "main", 1)
	require.NoError(t, err)
	assert.False(t, added)

	pulls, err := q.Pulls(ctx, "org/repo", "main")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, pulls)
}

func TestMergeQueue_BaseBranchChange(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	_, err := q.Add(ctx, "org/repo", "main", 5)
	require.NoError(t, err)
	_, err = q.Add(ctx, "org/other", "main", 5)
	require.NoError(t, err)

	_, err = q.Add(ctx, "org/repo", "release", 5)
	require.NoError(t, err)

	onMain, err := q.Pulls(ctx, "org/repo", "main")
	require.NoError(t, err)
	assert.Empty(t, onMain)

	release, err := q.Pulls(ctx, "org/repo", "release")
	require.NoError(t, err)
	assert.Equal(t, []int{5}, release)

	other, err := q.Pulls(ctx, "org/other", "main")
	require.NoError(t, err)
	assert.Equal(t, []int{5}, other, "queues of other repositories are untouched")
}

func TestMergeQueue_Remove(t *testing.T) {
	q, _ := setupQueue(t)
	ctx := context.Background()

	_, err := q.Add(ctx, "org/repo", "main", 5)
	require.NoError(t, err)

	removed, err := q.Remove(ctx, "org/repo", "main", 5)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = q.Remove(ctx, "org/repo", "main", 5)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestMergeQueue_CorruptMember(t *testing.T) {
	q, mr := setupQueue(t)

	_, err := mr.ZAdd("merge-queue~org/repo~main", 1, "not-a-number")
	require.NoError(t, err)

	_, err = q.Pulls(context.Background(), "org/repo", "main")
	assert.ErrorContains(t, err, "not-a-number")
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `merge-queue~org/re\*po~`, escapeGlob("merge-queue~org/re*po~"))
	assert.Equal(t, "org/repo.go", escapeGlob("org/repo.go"))
}
