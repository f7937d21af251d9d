package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry(
		Kind{Name: "rebase", Flags: Flags{IsCommand: true}},
		Kind{Name: "comment"},
	)

	assert.Equal(t, []string{"comment", "rebase"}, reg.Names())
	assert.Equal(t, []string{"rebase"}, reg.Commands())

	k, err := reg.Get("rebase")
	require.NoError(t, err)
	assert.True(t, k.Flags.IsCommand)

	_, err = reg.Get("merge")
	assert.ErrorIs(t, err, model.ErrUnknownAction)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRegistry(Kind{Name: "rebase"}, Kind{Name: "rebase"})
	})
}

func TestKind_Build(t *testing.T) {
	var got Config
	k := Kind{
		Name:   "comment",
		Schema: Schema{{Name: "message", Required: true, Accepts: []Shape{String}}},
		New: func(cfg Config) (Action, error) {
			got = cfg
			return nil, nil
		},
	}

	_, err := k.Build(map[string]any{"message": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got.String("message"))

	_, err = k.Build(map[string]any{})
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}
