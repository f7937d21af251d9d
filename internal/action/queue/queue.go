// Package queue implements the queue and unqueue actions on top of a merge
// queue per base branch.
package queue

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ericfisherdev/prpilot/internal/action"
	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
)

const (
	Name        = "queue"
	UnqueueName = "unqueue"
)

const TitleRemoved = "The pull request has been removed from the queue"

// NewKind returns the queue action kind. It runs on every evaluation so the
// reported position stays current.
func NewKind(q driven.MergeQueue) action.Kind {
	return action.Kind{
		Name:   Name,
		Flags:  action.Flags{IsCommand: true, AlwaysRun: true},
		Schema: action.Schema{},
		New: func(action.Config) (action.Action, error) {
			return &Action{queue: q}, nil
		},
	}
}

// NewUnqueueKind returns the command that takes a pull request out of its
// queue.
func NewUnqueueKind(q driven.MergeQueue) action.Kind {
	return action.Kind{
		Name:   UnqueueName,
		Flags:  action.Flags{IsCommand: true, AlwaysRun: true},
		Schema: action.Schema{},
		New: func(action.Config) (action.Action, error) {
			return &Unqueue{queue: q}, nil
		},
	}
}

// Action queues the pull request and reports where it stands. A merged pull
// request leaves the queue as a success, a closed or conflicting one as a
// failed car.
type Action struct {
	queue driven.MergeQueue
}

var _ action.Action = (*Action)(nil)

func (a *Action) Run(ctx context.Context, pctx driven.PullContext, _ model.EvaluatedRule) (model.Result, error) {
	pull := pctx.Pull()

	switch {
	case pull.Status == model.PRStatusMerged:
		if err := a.dequeue(ctx, pull); err != nil {
			return model.Result{}, err
		}
		return model.NewResult(model.ConclusionSuccess, "The pull request has been merged", ""), nil
	case pull.Status == model.PRStatusClosed:
		if err := a.dequeue(ctx, pull); err != nil {
			return model.Result{}, err
		}
		return model.NewResult(model.ConclusionCancelled, TitleRemoved, "The pull request has been closed manually."), nil
	case pull.Conflicting():
		if err := a.dequeue(ctx, pull); err != nil {
			return model.Result{}, err
		}
		return model.NewResult(model.ConclusionFailure, TitleRemoved,
			fmt.Sprintf("The pull request conflicts with the base branch `%s`.", pull.BaseBranch)), nil
	}

	if _, err := a.queue.Add(ctx, pull.RepoFullName, pull.BaseBranch, pull.Number); err != nil {
		return model.Result{}, err
	}
	pulls, err := a.queue.Pulls(ctx, pull.RepoFullName, pull.BaseBranch)
	if err != nil {
		return model.Result{}, err
	}
	pos := slices.Index(pulls, pull.Number)
	if pos < 0 {
		return model.Result{}, fmt.Errorf("%s#%d missing from the %s queue after being added", pull.RepoFullName, pull.Number, pull.BaseBranch)
	}

	title := fmt.Sprintf("The pull request is the %s in the queue to be merged", ordinal(pos+1))
	return model.NewResult(model.ConclusionPending, title, summary(pull, pulls)), nil
}

func (a *Action) dequeue(ctx context.Context, pull model.PullRequest) error {
	_, err := a.queue.Remove(ctx, pull.RepoFullName, pull.BaseBranch, pull.Number)
	return err
}

// Unqueue removes the pull request from the queue of its base branch.
type Unqueue struct {
	queue driven.MergeQueue
}

var _ action.Action = (*Unqueue)(nil)

func (u *Unqueue) Run(ctx context.Context, pctx driven.PullContext, _ model.EvaluatedRule) (model.Result, error) {
	pull := pctx.Pull()
	removed, err := u.queue.Remove(ctx, pull.RepoFullName, pull.BaseBranch, pull.Number)
	if err != nil {
		return model.Result{}, err
	}
	if !removed {
		return model.NewResult(model.ConclusionNeutral, "The pull request is not queued", ""), nil
	}
	return model.NewResult(model.ConclusionSuccess, TitleRemoved, ""), nil
}

func summary(pull model.PullRequest, pulls []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Merge queue of `%s`:**\n\n", pull.BaseBranch)
	for i, n := range pulls {
		fmt.Fprintf(&b, "%d. #%d", i+1, n)
		if n == pull.Number {
			b.WriteString(" (this pull request)")
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
