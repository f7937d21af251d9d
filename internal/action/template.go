package action

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
)

var templateFuncs = template.FuncMap{
	"join":  strings.Join,
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
}

// Template is a parsed option value rendered against pull request attributes.
// Referencing an attribute that does not exist is a render error.
type Template struct {
	source string
	tmpl   *template.Template
}

// ParseTemplate parses source with the text/template syntax.
func ParseTemplate(source string) (*Template, error) {
	tmpl, err := template.New("option").
		Option("missingkey=error").
		Funcs(templateFuncs).
		Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parsing template: %w", err)
	}
	return &Template{source: source, tmpl: tmpl}, nil
}

// Source returns the unparsed template text.
func (t *Template) Source() string {
	return t.source
}

// RenderError is returned when a template fails to execute against the
// attributes of a pull request.
type RenderError struct {
	Source string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering template %q: %v", e.Source, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// Render executes the template with the pull request attributes as data and
// trims surrounding whitespace. Failing to load attributes is returned as is;
// failing to execute is a *RenderError.
func (t *Template) Render(ctx context.Context, pctx driven.PullContext) (string, error) {
	attrs, err := pctx.Attributes(ctx)
	if err != nil {
		return "", fmt.Errorf("loading template attributes: %w", err)
	}

	var b strings.Builder
	if err := t.tmpl.Execute(&b, attrs); err != nil {
		return "", &RenderError{Source: t.source, Err: err}
	}
	return strings.TrimSpace(b.String()), nil
}
