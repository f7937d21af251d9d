// Package rebase implements the action that rebases a pull request head
// branch onto its base branch.
package rebase

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/prpilot/internal/action"
	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
)

// Name is the key of the action in rules files and commands.
const Name = "rebase"

var flags = action.Flags{
	IsCommand:    true,
	AlwaysRun:    true,
	SilentReport: true,
}

var schema = action.Schema{
	{Name: "bot_account", Accepts: []action.Shape{action.Null, action.TemplateString}},
}

// Result titles and summaries reported by the action.
const (
	TitleUnavailable   = "Unavailable with GitHub Action"
	SummaryUnavailable = "Due to GitHub Action limitation, the `rebase` command is only available with the prpilot GitHub App."

	TitleUpToDate = "Branch already up to date"

	TitleManualRebase   = "Pull request must be rebased manually."
	SummaryManualRebase = "GitHub Apps like prpilot are not allowed to rebase pull requests where `.github/workflows` is changed."

	TitleInvalidBotAccount = "Invalid bot_account template"

	TitleRebased = "Branch has been successfully rebased"
	TitleFailed  = "Branch rebase failed"
)

// NewKind returns the rebase action kind. githubApp reports whether the
// deployment runs as a GitHub App, the only mode allowed to push to head
// branches.
func NewKind(updater driven.BranchUpdater, githubApp bool) action.Kind {
	return action.Kind{
		Name:   Name,
		Flags:  flags,
		Schema: schema,
		New: func(cfg action.Config) (action.Action, error) {
			return &Action{
				updater:    updater,
				githubApp:  githubApp,
				botAccount: cfg.Template("bot_account"),
			}, nil
		},
	}
}

// Action is a configured rebase action.
type Action struct {
	updater    driven.BranchUpdater
	githubApp  bool
	botAccount *action.Template // nil means the default identity.
}

var _ action.Action = (*Action)(nil)

// Run walks the rebase gates in order and stops at the first one that
// produces a result.
func (a *Action) Run(ctx context.Context, pctx driven.PullContext, _ model.EvaluatedRule) (model.Result, error) {
	if !a.githubApp {
		return model.NewResult(model.ConclusionFailure, TitleUnavailable, SummaryUnavailable), nil
	}

	behind, err := pctx.IsBehind(ctx)
	if err != nil {
		return model.Result{}, err
	}
	if !behind {
		return model.NewResult(model.ConclusionSuccess, TitleUpToDate, ""), nil
	}

	changed, err := pctx.GitHubWorkflowChanged(ctx)
	if err != nil {
		return model.Result{}, err
	}
	if changed {
		return model.NewResult(model.ConclusionActionRequired, TitleManualRebase, SummaryManualRebase), nil
	}

	if res := a.updater.PreRebaseCheck(pctx); res != nil {
		return *res, nil
	}

	botAccount, err := a.renderBotAccount(ctx, pctx)
	if err != nil {
		var re *action.RenderError
		if errors.As(err, &re) {
			return model.NewResult(model.ConclusionFailure, TitleInvalidBotAccount, re.Error()), nil
		}
		return model.Result{}, err
	}

	outcome, err := a.updater.RebaseWithGit(ctx, pctx, botAccount)
	if err != nil {
		return model.Result{}, err
	}

	switch outcome.Status {
	case model.UpdateSucceeded:
		return model.NewResult(model.ConclusionSuccess, TitleRebased, ""), nil
	case model.UpdateAuthenticationFailed, model.UpdateFailed:
		return model.NewResult(model.ConclusionFailure, TitleFailed, outcome.Message), nil
	default:
		return model.Result{}, fmt.Errorf("unexpected branch update status %s", outcome.Status)
	}
}

func (a *Action) renderBotAccount(ctx context.Context, pctx driven.PullContext) (string, error) {
	if a.botAccount == nil {
		return "", nil
	}
	return a.botAccount.Render(ctx, pctx)
}
