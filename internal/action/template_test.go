package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

type fakePullContext struct {
	attrs    map[string]any
	attrsErr error
}

func (f *fakePullContext) Pull() model.PullRequest { return model.PullRequest{} }

func (f *fakePullContext) IsBehind(context.Context) (bool, error) { return false, nil }

func (f *fakePullContext) GitHubWorkflowChanged(context.Context) (bool, error) { return false, nil }

func (f *fakePullContext) Attributes(context.Context) (map[string]any, error) {
	return f.attrs, f.attrsErr
}

func TestTemplate_Render(t *testing.T) {
	tmpl, err := ParseTemplate("  {{ .author }} on {{ join .label \",\" | upper }}\n")
	require.NoError(t, err)

	pctx := &fakePullContext{attrs: map[string]any{
		"author": "octocat",
		"label":  []string{"a", "b"},
	}}
	out, err := tmpl.Render(context.Background(), pctx)
	require.NoError(t, err)
	assert.Equal(t, "octocat on A,B", out)
}

func TestTemplate_Render_UnknownAttribute(t *testing.T) {
	tmpl, err := ParseTemplate("{{ .nope }}")
	require.NoError(t, err)

	_, err = tmpl.Render(context.Background(), &fakePullContext{attrs: map[string]any{}})
	require.Error(t, err)

	var re *RenderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "{{ .nope }}", re.Source)
}

func TestTemplate_Render_AttributesError(t *testing.T) {
	tmpl, err := ParseTemplate("{{ .author }}")
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = tmpl.Render(context.Background(), &fakePullContext{attrsErr: boom})
	require.ErrorIs(t, err, boom)

	var re *RenderError
	assert.False(t, errors.As(err, &re))
}

func TestParseTemplate_Invalid(t *testing.T) {
	_, err := ParseTemplate("{{ if }}")
	assert.Error(t, err)
}
