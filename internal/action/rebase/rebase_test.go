package rebase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/prpilot/internal/action"
	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
)

// mockPullContext counts every query so tests can assert which gates ran.
type mockPullContext struct {
	pull      model.PullRequest
	behind    bool
	behindErr error
	workflow  bool
	attrs     map[string]any
	calls     int
}

func (m *mockPullContext) Pull() model.PullRequest {
	m.calls++
	return m.pull
}

func (m *mockPullContext) IsBehind(context.Context) (bool, error) {
	m.calls++
	return m.behind, m.behindErr
}

func (m *mockPullContext) GitHubWorkflowChanged(context.Context) (bool, error) {
	m.calls++
	return m.workflow, nil
}

func (m *mockPullContext) Attributes(context.Context) (map[string]any, error) {
	m.calls++
	return m.attrs, nil
}

type mockUpdater struct {
	precheck   *model.Result
	outcome    model.BranchUpdateOutcome
	err        error
	rebased    int
	botAccount string
}

func (m *mockUpdater) PreRebaseCheck(driven.PullContext) *model.Result {
	return m.precheck
}

func (m *mockUpdater) RebaseWithGit(_ context.Context, _ driven.PullContext, botAccount string) (model.BranchUpdateOutcome, error) {
	m.rebased++
	m.botAccount = botAccount
	return m.outcome, m.err
}

func build(t *testing.T, updater *mockUpdater, githubApp bool, raw map[string]any) action.Action {
	t.Helper()
	act, err := NewKind(updater, githubApp).Build(raw)
	require.NoError(t, err)
	return act
}

func run(t *testing.T, act action.Action, pctx driven.PullContext) model.Result {
	t.Helper()
	res, err := act.Run(context.Background(), pctx, model.EvaluatedRule{})
	require.NoError(t, err)
	return res
}

func TestKind_Declaration(t *testing.T) {
	k := NewKind(&mockUpdater{}, true)

	assert.Equal(t, "rebase", k.Name)
	assert.Equal(t, action.Flags{IsCommand: true, AlwaysRun: true, SilentReport: true}, k.Flags)

	cfg, err := k.Schema.Validate(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg.Template("bot_account"))

	_, err = k.Schema.Validate(map[string]any{"bot_account": 3})
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestRun_NotGitHubApp(t *testing.T) {
	updater := &mockUpdater{}
	pctx := &mockPullContext{behind: true}

	res := run(t, build(t, updater, false, nil), pctx)

	assert.Equal(t, model.NewResult(model.ConclusionFailure, "Unavailable with GitHub Action",
		"Due to GitHub Action limitation, the `rebase` command is only available with the prpilot GitHub App."), res)
	assert.Zero(t, pctx.calls, "context must not be queried")
	assert.Zero(t, updater.rebased)
}

func TestRun_UpToDate(t *testing.T) {
	updater := &mockUpdater{}
	pctx := &mockPullContext{behind: false, workflow: true}

	res := run(t, build(t, updater, true, nil), pctx)

	assert.Equal(t, model.NewResult(model.ConclusionSuccess, "Branch already up to date", ""), res)
	assert.Equal(t, 1, pctx.calls, "only IsBehind is queried")
	assert.Zero(t, updater.rebased)
}

func TestRun_WorkflowChanged(t *testing.T) {
	updater := &mockUpdater{}
	pctx := &mockPullContext{behind: true, workflow: true}

	res := run(t, build(t, updater, true, nil), pctx)

	assert.Equal(t, model.ConclusionActionRequired, res.Conclusion)
	assert.Equal(t, "Pull request must be rebased manually.", res.Title)
	assert.Contains(t, res.Summary, ".github/workflows")
	assert.Zero(t, updater.rebased)
}

func TestRun_PreRebaseCheckReturnedUnmodified(t *testing.T) {
	check := model.NewResult(model.ConclusionFailure, "Pull request can't be updated", "head repository was deleted")
	updater := &mockUpdater{precheck: &check}

	res := run(t, build(t, updater, true, nil), &mockPullContext{behind: true})

	assert.Equal(t, check, res)
	assert.Zero(t, updater.rebased)
}

func TestRun_Success(t *testing.T) {
	updater := &mockUpdater{outcome: model.UpdateOK()}

	res := run(t, build(t, updater, true, nil), &mockPullContext{behind: true})

	assert.Equal(t, model.NewResult(model.ConclusionSuccess, "Branch has been successfully rebased", ""), res)
	assert.Equal(t, 1, updater.rebased)
	assert.Empty(t, updater.botAccount)
}

func TestRun_AuthenticationFailure(t *testing.T) {
	updater := &mockUpdater{outcome: model.AuthenticationFailure("bad creds")}

	res := run(t, build(t, updater, true, nil), &mockPullContext{behind: true})

	assert.Equal(t, model.NewResult(model.ConclusionFailure, "Branch rebase failed", "bad creds"), res)
}

func TestRun_BranchUpdateFailure(t *testing.T) {
	updater := &mockUpdater{outcome: model.BranchUpdateFailure("merge conflict in %s", "main.go")}

	res := run(t, build(t, updater, true, nil), &mockPullContext{behind: true})

	assert.Equal(t, model.NewResult(model.ConclusionFailure, "Branch rebase failed", "merge conflict in main.go"), res)
}

func TestRun_BotAccountRendered(t *testing.T) {
	updater := &mockUpdater{outcome: model.UpdateOK()}
	pctx := &mockPullContext{behind: true, attrs: map[string]any{"author": "octocat"}}

	act := build(t, updater, true, map[string]any{"bot_account": "{{ .author }}-bot"})
	res := run(t, act, pctx)

	assert.Equal(t, model.ConclusionSuccess, res.Conclusion)
	assert.Equal(t, "octocat-bot", updater.botAccount)
}

func TestRun_BotAccountRenderFailure(t *testing.T) {
	updater := &mockUpdater{outcome: model.UpdateOK()}
	pctx := &mockPullContext{behind: true, attrs: map[string]any{}}

	act := build(t, updater, true, map[string]any{"bot_account": "{{ .missing }}"})
	res := run(t, act, pctx)

	assert.Equal(t, model.ConclusionFailure, res.Conclusion)
	assert.Equal(t, "Invalid bot_account template", res.Title)
	assert.Zero(t, updater.rebased)
}

func TestRun_ErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset")

	_, err := build(t, &mockUpdater{}, true, nil).
		Run(context.Background(), &mockPullContext{behindErr: boom}, model.EvaluatedRule{})
	assert.ErrorIs(t, err, boom)

	updater := &mockUpdater{err: boom}
	_, err = build(t, updater, true, nil).
		Run(context.Background(), &mockPullContext{behind: true}, model.EvaluatedRule{})
	assert.ErrorIs(t, err, boom)
}

func TestRun_UnknownStatus(t *testing.T) {
	updater := &mockUpdater{outcome: model.BranchUpdateOutcome{Status: model.BranchUpdateStatus(42)}}

	_, err := build(t, updater, true, nil).
		Run(context.Background(), &mockPullContext{behind: true}, model.EvaluatedRule{})
	assert.Error(t, err)
}

func TestRun_ZeroOutcomeIsNotSuccess(t *testing.T) {
	updater := &mockUpdater{}

	_, err := build(t, updater, true, nil).
		Run(context.Background(), &mockPullContext{behind: true}, model.EvaluatedRule{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown")
}
