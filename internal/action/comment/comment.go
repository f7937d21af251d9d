// Package comment implements the action that posts a templated comment on a
// pull request.
package comment

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/prpilot/internal/action"
	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
)

const Name = "comment"

var schema = action.Schema{
	{Name: "message", Required: true, Accepts: []action.Shape{action.TemplateString}},
}

// NewKind returns the comment action kind posting through writer.
func NewKind(writer driven.GitHubWriter) action.Kind {
	return action.Kind{
		Name:   Name,
		Flags:  action.Flags{},
		Schema: schema,
		New: func(cfg action.Config) (action.Action, error) {
			message := cfg.Template("message")
			if message == nil {
				return nil, &action.ConfigError{Option: "message", Reason: "required option is missing"}
			}
			return &Action{writer: writer, message: message}, nil
		},
	}
}

// Action is a configured comment action.
type Action struct {
	writer  driven.GitHubWriter
	message *action.Template
}

var _ action.Action = (*Action)(nil)

func (a *Action) Run(ctx context.Context, pctx driven.PullContext, _ model.EvaluatedRule) (model.Result, error) {
	body, err := a.message.Render(ctx, pctx)
	if err != nil {
		var re *action.RenderError
		if errors.As(err, &re) {
			return model.NewResult(model.ConclusionFailure, "Invalid message template", re.Error()), nil
		}
		return model.Result{}, err
	}
	if body == "" {
		return model.NewResult(model.ConclusionSkipped, "Message is empty, comment not posted", ""), nil
	}

	pull := pctx.Pull()
	if err := a.writer.CreateIssueComment(ctx, pull.RepoFullName, pull.Number, body); err != nil {
		return model.Result{}, fmt.Errorf("posting comment on %s#%d: %w", pull.RepoFullName, pull.Number, err)
	}
	return model.NewResult(model.ConclusionSuccess, "Comment posted", body), nil
}
