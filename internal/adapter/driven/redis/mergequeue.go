package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
	"github.com/ericfisherdev/prpilot/internal/logging"
)

// Compile-time interface satisfaction check.
var _ driven.MergeQueue = (*MergeQueue)(nil)

const queuePrefix = "merge-queue~"

// MergeQueue keeps one sorted set per base branch,
// merge-queue~<owner>/<repo>~<ref>, scored by enqueue time.
type MergeQueue struct {
	client goredis.UniversalClient
	now    func() time.Time
	logger *slog.Logger
}

// NewMergeQueue wraps an existing client.
func NewMergeQueue(client goredis.UniversalClient) *MergeQueue {
	return &MergeQueue{client: client, now: time.Now, logger: logging.Named("redis")}
}

func (q *MergeQueue) Add(ctx context.Context, repoFullName, ref string, number int) (bool, error) {
	key := queueKey(repoFullName, ref)
	member := strconv.Itoa(number)
	log := q.logger.With("repo", repoFullName, "ref", ref, "pr_number", number)

	if err := q.removeFromOtherQueues(ctx, repoFullName, key, member, log); err != nil {
		return false, err
	}

	n, err := q.client.ZAddNX(ctx, key, goredis.Z{Score: float64(q.now().UnixMicro()), Member: member}).Result()
	if err != nil {
		return false, fmt.Errorf("queueing %s#%d on %s: %w", repoFullName, number, ref, err)
	}
	if n == 0 {
		log.DebugContext(ctx, "pull request already in merge queue")
		return false, nil
	}
	log.InfoContext(ctx, "pull request added to merge queue")
	return true, nil
}

// removeFromOtherQueues handles a base branch change: the pull request may
// still sit in the queue of its previous base.
func (q *MergeQueue) removeFromOtherQueues(ctx context.Context, repoFullName, key, member string, log *slog.Logger) error {
	iter := q.client.Scan(ctx, 0, escapeGlob(queuePrefix+repoFullName+"~")+"*", 0).Iterator()
	for iter.Next(ctx) {
		other := iter.Val()
		if other == key {
			continue
		}
		n, err := q.client.ZRem(ctx, other, member).Result()
		if err != nil {
			return fmt.Errorf("cleaning %s: %w", other, err)
		}
		if n > 0 {
			log.InfoContext(ctx, "pull request base branch changed, removed from old queue",
				"old_ref", strings.TrimPrefix(other, queuePrefix+repoFullName+"~"))
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("listing merge queues of %s: %w", repoFullName, err)
	}
	return nil
}

func (q *MergeQueue) Remove(ctx context.Context, repoFullName, ref string, number int) (bool, error) {
	n, err := q.client.ZRem(ctx, queueKey(repoFullName, ref), strconv.Itoa(number)).Result()
	if err != nil {
		return false, fmt.Errorf("dequeueing %s#%d from %s: %w", repoFullName, number, ref, err)
	}
	if n > 0 {
		q.logger.InfoContext(ctx, "pull request removed from merge queue", "repo", repoFullName, "ref", ref, "pr_number", number)
	}
	return n > 0, nil
}

func (q *MergeQueue) Pulls(ctx context.Context, repoFullName, ref string) ([]int, error) {
	members, err := q.client.ZRange(ctx, queueKey(repoFullName, ref), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading merge queue of %s on %s: %w", repoFullName, ref, err)
	}
	pulls := make([]int, 0, len(members))
	for _, m := range members {
		n, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("merge queue of %s on %s holds %q: %w", repoFullName, ref, m, err)
		}
		pulls = append(pulls, n)
	}
	return pulls, nil
}

func queueKey(repoFullName, ref string) string {
	return queuePrefix + repoFullName + "~" + ref
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
