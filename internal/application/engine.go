// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ericfisherdev/prpilot/internal/action"
	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
	"github.com/ericfisherdev/prpilot/internal/logging"
	"github.com/ericfisherdev/prpilot/internal/rules"
	"github.com/ericfisherdev/prpilot/internal/telemetry"
)

// RulesCheckName is the check run reporting an invalid rules file.
const RulesCheckName = "prpilot/rules"

// Engine evaluates the rules of a repository against a pull request and runs
// the actions of every matching rule.
type Engine struct {
	client    driven.GitHubClient
	writer    driven.GitHubWriter
	results   driven.ResultStore
	registry  *action.Registry
	rulesFile string
	tracer    trace.Tracer
	logger    *slog.Logger
	now       func() time.Time
}

// NewEngine creates an Engine. When rulesFile is non-empty it is read from
// disk instead of fetching .prpilot.yml from the base branch.
func NewEngine(
	client driven.GitHubClient,
	writer driven.GitHubWriter,
	results driven.ResultStore,
	registry *action.Registry,
	rulesFile string,
	tracer trace.Tracer,
) *Engine {
	return &Engine{
		client:    client,
		writer:    writer,
		results:   results,
		registry:  registry,
		rulesFile: rulesFile,
		tracer:    tracer,
		logger:    logging.Named("engine"),
		now:       time.Now,
	}
}

// Evaluate runs one evaluation pass over a pull request and returns the
// records of every action that ran. Actions of matching rules run in rule
// order, then action name order. An action already recorded for the same
// rule and head SHA is skipped unless its kind is AlwaysRun. Unexpected
// action errors do not stop the pass; they are joined into the returned
// error. Cancellation stops the pass immediately.
func (e *Engine) Evaluate(ctx context.Context, repoFullName string, prNumber int) ([]model.ActionRecord, error) {
	runID := uuid.NewString()
	ctx, span := telemetry.StartSpan(ctx, e.tracer, "engine.evaluate",
		attribute.String(telemetry.RepoKey, repoFullName),
		attribute.Int(telemetry.PRNumberKey, prNumber),
		attribute.String(telemetry.RunIDKey, runID),
	)
	defer span.End()

	pctx, err := NewPullContext(ctx, e.client, repoFullName, prNumber)
	if err != nil {
		telemetry.SetError(span, err)
		return nil, err
	}
	pull := pctx.Pull()

	rs, err := e.loadRules(ctx, pull)
	if err != nil {
		if errors.Is(err, model.ErrInvalidConfig) {
			e.reportInvalidRules(ctx, pull, err)
		}
		telemetry.SetError(span, err)
		return nil, err
	}

	matches, err := rs.Evaluate(ctx, pctx)
	if err != nil {
		telemetry.SetError(span, err)
		return nil, fmt.Errorf("evaluating rules for %s#%d: %w", repoFullName, prNumber, err)
	}

	var (
		records []model.ActionRecord
		errs    []error
	)
	for _, m := range matches {
		if !m.Evaluated.Matched {
			e.logger.Debug("rule not matched", "repo", repoFullName, "pr_number", prNumber,
				"rule", m.Rule.Name, "missing", m.Evaluated.MissingConditions)
			continue
		}
		for _, ra := range m.Rule.Actions {
			rec, err := e.runAction(ctx, runID, pctx, m, ra)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return records, ctxErr
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if rec != nil {
				records = append(records, *rec)
			}
		}
	}

	e.logger.Info("evaluation complete", "repo", repoFullName, "pr_number", prNumber,
		"run_id", runID, "actions_run", len(records), "errors", len(errs))
	return records, errors.Join(errs...)
}

func (e *Engine) runAction(ctx context.Context, runID string, pctx *PullContext, m rules.Match, ra rules.RuleAction) (*model.ActionRecord, error) {
	pull := pctx.Pull()
	name := ra.Kind.Name

	if !ra.Kind.Flags.AlwaysRun {
		ran, err := e.results.HasRun(ctx, pull.RepoFullName, pull.Number, m.Rule.Name, name, pull.HeadSHA)
		if err != nil {
			return nil, fmt.Errorf("checking history of %s for rule %q: %w", name, m.Rule.Name, err)
		}
		if ran {
			e.logger.Debug("action already ran for head", "rule", m.Rule.Name, "action", name, "head_sha", pull.HeadSHA)
			return nil, nil
		}
	}

	ctx, span := telemetry.StartSpan(ctx, e.tracer, "action."+name,
		attribute.String(telemetry.RuleKey, m.Rule.Name),
		attribute.String(telemetry.ActionKey, name),
	)
	defer span.End()

	act, err := ra.Build()
	if err != nil {
		telemetry.SetError(span, err)
		return nil, fmt.Errorf("building %s for rule %q: %w", name, m.Rule.Name, err)
	}

	res, err := act.Run(ctx, pctx, m.Evaluated)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		telemetry.SetError(span, err)
		e.logger.Error("action failed", "repo", pull.RepoFullName, "pr_number", pull.Number,
			"rule", m.Rule.Name, "action", name, "error", err)
		return nil, fmt.Errorf("running %s for rule %q: %w", name, m.Rule.Name, err)
	}
	span.SetAttributes(attribute.String(telemetry.ConclusionKey, string(res.Conclusion)))

	rec := model.ActionRecord{
		RunID:        runID,
		RepoFullName: pull.RepoFullName,
		PRNumber:     pull.Number,
		HeadSHA:      pull.HeadSHA,
		RuleName:     m.Rule.Name,
		Action:       name,
		Trigger:      model.TriggerRule,
		Result:       res,
		RanAt:        e.now(),
	}
	id, err := e.results.Record(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("recording %s for rule %q: %w", name, m.Rule.Name, err)
	}
	rec.ID = id

	if !ra.Kind.Flags.SilentReport {
		check := fmt.Sprintf("Rule: %s (%s)", m.Rule.Name, name)
		if err := e.writer.CreateCheckRun(ctx, pull.RepoFullName, pull.HeadSHA, check, res); err != nil {
			e.logger.Warn("failed to report check run", "check", check, "error", err)
		}
	}

	e.logger.Info("action ran", "repo", pull.RepoFullName, "pr_number", pull.Number,
		"rule", m.Rule.Name, "action", name, "conclusion", res.Conclusion, "title", res.Title)
	return &rec, nil
}

func (e *Engine) loadRules(ctx context.Context, pull model.PullRequest) (*rules.RuleSet, error) {
	var (
		data []byte
		err  error
	)
	if e.rulesFile != "" {
		data, err = os.ReadFile(e.rulesFile)
		if err != nil {
			return nil, fmt.Errorf("reading rules file: %w", err)
		}
	} else {
		data, err = e.client.FetchFileContent(ctx, pull.RepoFullName, rules.DefaultPath, pull.BaseBranch)
		if errors.Is(err, model.ErrNotFound) {
			e.logger.Debug("no rules file", "repo", pull.RepoFullName, "ref", pull.BaseBranch)
			return &rules.RuleSet{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", rules.DefaultPath, err)
		}
	}
	return rules.Load(data, e.registry)
}

func (e *Engine) reportInvalidRules(ctx context.Context, pull model.PullRequest, cause error) {
	res := model.NewResult(model.ConclusionFailure, "The rules file is invalid", cause.Error())
	if err := e.writer.CreateCheckRun(ctx, pull.RepoFullName, pull.HeadSHA, RulesCheckName, res); err != nil {
		e.logger.Warn("failed to report invalid rules", "repo", pull.RepoFullName, "error", err)
	}
}
