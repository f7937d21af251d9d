package application_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ericfisherdev/prpilot/internal/action"
	"github.com/ericfisherdev/prpilot/internal/application"
	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
)

// probeAction returns a fixed result and counts its runs.
type probeAction struct {
	kind *probeKind
}

func (p *probeAction) Run(ctx context.Context, _ driven.PullContext, rule model.EvaluatedRule) (model.Result, error) {
	p.kind.runs++
	p.kind.rules = append(p.kind.rules, rule.Name)
	if p.kind.run != nil {
		return p.kind.run(ctx)
	}
	return model.NewResult(model.ConclusionSuccess, p.kind.name+" done", ""), nil
}

type probeKind struct {
	name  string
	flags action.Flags
	run   func(ctx context.Context) (model.Result, error)
	runs  int
	rules []string
}

func (k *probeKind) kind() action.Kind {
	return action.Kind{
		Name:  k.name,
		Flags: k.flags,
		New: func(action.Config) (action.Action, error) {
			return &probeAction{kind: k}, nil
		},
	}
}

const engineRules = `
pull_request_rules:
  - name: on main
    conditions:
      - base=main
    actions:
      alpha:
      beta:
  - name: on release
    conditions:
      - base=release
    actions:
      alpha:
`

func newEngine(client *mockGitHubClient, writer *mockWriter, store *mockResultStore, kinds ...*probeKind) *application.Engine {
	list := make([]action.Kind, 0, len(kinds))
	for _, k := range kinds {
		list = append(list, k.kind())
	}
	return application.NewEngine(client, writer, store, action.NewRegistry(list...), "", noop.NewTracerProvider().Tracer("test"))
}

func TestEngine_RunsMatchedRules(t *testing.T) {
	client := &mockGitHubClient{pull: testPull(), rules: []byte(engineRules)}
	writer := &mockWriter{}
	store := &mockResultStore{}
	alpha := &probeKind{name: "alpha"}
	beta := &probeKind{name: "beta", flags: action.Flags{SilentReport: true}}

	records, err := newEngine(client, writer, store, alpha, beta).Evaluate(context.Background(), "octo/repo", 7)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].Action)
	assert.Equal(t, "beta", records[1].Action)
	assert.Equal(t, records[0].RunID, records[1].RunID)
	assert.NotEmpty(t, records[0].RunID)
	assert.Equal(t, "on main", records[0].RuleName)
	assert.Equal(t, "head1", records[0].HeadSHA)
	assert.Equal(t, model.TriggerRule, records[0].Trigger)
	assert.Equal(t, int64(1), records[0].ID)

	assert.Equal(t, 1, alpha.runs, "rule on release does not match")
	assert.Equal(t, []string{"on main"}, alpha.rules)
	assert.Len(t, store.records, 2)

	require.Len(t, writer.checks, 1, "beta reports silently")
	assert.Equal(t, "Rule: on main (alpha)", writer.checks[0].Name)
	assert.Equal(t, "head1", writer.checks[0].HeadSHA)
	assert.Equal(t, model.ConclusionSuccess, writer.checks[0].Result.Conclusion)
}

func TestEngine_SkipsAlreadyRun(t *testing.T) {
	client := &mockGitHubClient{pull: testPull(), rules: []byte(engineRules)}
	store := &mockResultStore{ran: map[string]bool{
		"on main/alpha/head1": true,
		"on main/beta/head1":  true,
	}}
	alpha := &probeKind{name: "alpha"}
	beta := &probeKind{name: "beta", flags: action.Flags{AlwaysRun: true}}

	records, err := newEngine(client, &mockWriter{}, store, alpha, beta).Evaluate(context.Background(), "octo/repo", 7)
	require.NoError(t, err)

	assert.Zero(t, alpha.runs)
	assert.Equal(t, 1, beta.runs, "AlwaysRun ignores history")
	require.Len(t, records, 1)
	assert.Equal(t, "beta", records[0].Action)
}

func TestEngine_ActionErrorDoesNotStopPass(t *testing.T) {
	client := &mockGitHubClient{pull: testPull(), rules: []byte(engineRules)}
	writer := &mockWriter{}
	store := &mockResultStore{}
	boom := errors.New("boom")
	alpha := &probeKind{name: "alpha", run: func(context.Context) (model.Result, error) {
		return model.Result{}, boom
	}}
	beta := &probeKind{name: "beta"}

	records, err := newEngine(client, writer, store, alpha, beta).Evaluate(context.Background(), "octo/repo", 7)

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `running alpha for rule "on main"`)
	require.Len(t, records, 1)
	assert.Equal(t, "beta", records[0].Action)
	assert.Len(t, store.records, 1, "failed action is not recorded")
	assert.Len(t, writer.checks, 1)
}

func TestEngine_Cancellation(t *testing.T) {
	client := &mockGitHubClient{pull: testPull(), rules: []byte(engineRules)}
	store := &mockResultStore{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alpha := &probeKind{name: "alpha", run: func(context.Context) (model.Result, error) {
		cancel()
		return model.NewResult(model.ConclusionSuccess, "too late", ""), nil
	}}
	beta := &probeKind{name: "beta"}

	records, err := newEngine(client, &mockWriter{}, store, alpha, beta).Evaluate(ctx, "octo/repo", 7)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, records)
	assert.Empty(t, store.records)
	assert.Zero(t, beta.runs)
}

func TestEngine_NoRulesFile(t *testing.T) {
	client := &mockGitHubClient{pull: testPull(), rulesErr: model.ErrNotFound}
	alpha := &probeKind{name: "alpha"}

	records, err := newEngine(client, &mockWriter{}, &mockResultStore{}, alpha).Evaluate(context.Background(), "octo/repo", 7)

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, alpha.runs)
}

func TestEngine_InvalidRules(t *testing.T) {
	client := &mockGitHubClient{pull: testPull(), rules: []byte("pull_request_rules: 3")}
	writer := &mockWriter{}

	_, err := newEngine(client, writer, &mockResultStore{}, &probeKind{name: "alpha"}).Evaluate(context.Background(), "octo/repo", 7)

	require.ErrorIs(t, err, model.ErrInvalidConfig)
	require.Len(t, writer.checks, 1)
	assert.Equal(t, application.RulesCheckName, writer.checks[0].Name)
	assert.Equal(t, model.ConclusionFailure, writer.checks[0].Result.Conclusion)
}

func TestEngine_LocalRulesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(engineRules), 0o600))

	client := &mockGitHubClient{pull: testPull(), rulesErr: errors.New("must not be fetched")}
	alpha := &probeKind{name: "alpha"}
	beta := &probeKind{name: "beta"}
	registry := action.NewRegistry(alpha.kind(), beta.kind())
	engine := application.NewEngine(client, &mockWriter{}, &mockResultStore{}, registry, path, noop.NewTracerProvider().Tracer("test"))

	records, err := engine.Evaluate(context.Background(), "octo/repo", 7)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestEngine_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	client := &mockGitHubClient{pull: testPull(), rules: []byte(engineRules)}
	alpha := &probeKind{name: "alpha"}
	beta := &probeKind{name: "beta"}
	registry := action.NewRegistry(alpha.kind(), beta.kind())
	engine := application.NewEngine(client, &mockWriter{}, &mockResultStore{}, registry, "", tp.Tracer("test"))

	_, err := engine.Evaluate(context.Background(), "octo/repo", 7)
	require.NoError(t, err)

	var names []string
	for _, s := range recorder.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{"action.alpha", "action.beta", "engine.evaluate"}, names)
}
