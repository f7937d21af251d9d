package httphandler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSummary_EmptyInput(t *testing.T) {
	assert.Equal(t, "", RenderSummary(""))
}

func TestRenderSummary_Markdown(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "bold", src: "**bold text**", want: "<strong>bold text</strong>"},
		{name: "inline code", src: "use `git rebase`", want: "<code>git rebase</code>"},
		{name: "link", src: "[authorize modification](https://docs.github.com/x)", want: `<a href="https://docs.github.com/x"`},
		{name: "strikethrough", src: "~~deleted~~", want: "<del>deleted</del>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, RenderSummary(tt.src), tt.want)
		})
	}
}

func TestRenderSummary_SanitizesScript(t *testing.T) {
	result := RenderSummary(`<script>alert("xss")</script>`)
	assert.NotContains(t, result, "<script>")
}
