// Package action defines the contract shared by every pull request action:
// behavioural flags, a declarative configuration schema and the Run method
// that turns a pull request context into a model.Result.
package action

import (
	"context"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
)

// Flags are declared once per action kind and are read by the engine and the
// command service, never by the action itself.
type Flags struct {
	IsCommand    bool // Invocable through a manual command comment.
	AlwaysRun    bool // Runs again even if already recorded for the head SHA.
	SilentReport bool // No check run is reported for the result.
}

// Action is a configured action instance.
//
// Run returns a Result for every expected outcome, including failures the
// user can act on. An error is returned only for unexpected faults, and when
// ctx is cancelled. Run must not have side effects before its preconditions
// hold.
type Action interface {
	Run(ctx context.Context, pctx driven.PullContext, rule model.EvaluatedRule) (model.Result, error)
}

// Kind describes an action type: its name, flags, schema and a constructor
// taking a configuration already validated against Schema.
type Kind struct {
	Name   string
	Flags  Flags
	Schema Schema
	New    func(cfg Config) (Action, error)
}

// Build validates raw against the kind schema and instantiates the action.
func (k Kind) Build(raw map[string]any) (Action, error) {
	cfg, err := k.Schema.Validate(raw)
	if err != nil {
		return nil, err
	}
	return k.New(cfg)
}
