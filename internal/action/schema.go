package action

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ericfisherdev/prpilot/internal/domain/model"
)

// ConfigError describes why an action configuration was rejected.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Option == "" {
		return "invalid action configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid action configuration: %s: %s", e.Option, e.Reason)
}

// Is lets errors.Is(err, model.ErrInvalidConfig) match any ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == model.ErrInvalidConfig
}

// Shape is one accepted form of an option value.
type Shape interface {
	// Name is used in error messages.
	Name() string
	// parse converts raw into the normalised value. ok is false when the
	// shape does not apply to raw at all; err is set when it applies but
	// the value is malformed.
	parse(raw any) (value any, ok bool, err error)
	jsonSchema() map[string]any
}

// Shapes available to option declarations.
var (
	Null           Shape = nullShape{}
	TemplateString Shape = templateShape{}
	String         Shape = stringShape{}
	Bool           Shape = boolShape{}
	StringList     Shape = stringListShape{}
)

type nullShape struct{}

func (nullShape) Name() string { return "null" }

func (nullShape) parse(raw any) (any, bool, error) {
	return nil, raw == nil, nil
}

func (nullShape) jsonSchema() map[string]any { return map[string]any{"type": "null"} }

type templateShape struct{}

func (templateShape) Name() string { return "template" }

func (templateShape) parse(raw any) (any, bool, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, false, nil
	}
	tmpl, err := ParseTemplate(s)
	if err != nil {
		return nil, true, err
	}
	return tmpl, true, nil
}

func (templateShape) jsonSchema() map[string]any { return map[string]any{"type": "string"} }

type stringShape struct{}

func (stringShape) Name() string { return "string" }

func (stringShape) parse(raw any) (any, bool, error) {
	s, ok := raw.(string)
	return s, ok, nil
}

func (stringShape) jsonSchema() map[string]any { return map[string]any{"type": "string"} }

type boolShape struct{}

func (boolShape) Name() string { return "boolean" }

func (boolShape) parse(raw any) (any, bool, error) {
	b, ok := raw.(bool)
	return b, ok, nil
}

func (boolShape) jsonSchema() map[string]any { return map[string]any{"type": "boolean"} }

type stringListShape struct{}

func (stringListShape) Name() string { return "list of strings" }

func (stringListShape) parse(raw any) (any, bool, error) {
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), true, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, true, fmt.Errorf("item %d is not a string", i)
			}
			out = append(out, s)
		}
		return out, true, nil
	default:
		return nil, false, nil
	}
}

func (stringListShape) jsonSchema() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

// Option declares one configuration key of an action.
type Option struct {
	Name     string
	Default  any  // Used when the key is absent. nil means absent.
	Required bool // Absence is a validation error; Default is ignored.
	Accepts  []Shape
}

// Schema is the ordered list of options an action accepts.
type Schema []Option

// Validate normalises raw into a Config. Unknown keys are rejected, absent
// keys take their default and the first shape accepting a value parses it.
func (s Schema) Validate(raw map[string]any) (Config, error) {
	known := make(map[string]struct{}, len(s))
	for _, opt := range s {
		known[opt.Name] = struct{}{}
	}

	var unknown []string
	for key := range raw {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, &ConfigError{Reason: "unknown option(s) " + strings.Join(unknown, ", ")}
	}

	cfg := make(Config, len(s))
	for _, opt := range s {
		value, present := raw[opt.Name]
		if !present {
			if opt.Required {
				return nil, &ConfigError{Option: opt.Name, Reason: "required option is missing"}
			}
			value = opt.Default
		}

		parsed, err := opt.parse(value)
		if err != nil {
			return nil, err
		}
		cfg[opt.Name] = parsed
	}
	return cfg, nil
}

func (o Option) parse(raw any) (any, error) {
	names := make([]string, 0, len(o.Accepts))
	for _, shape := range o.Accepts {
		v, ok, err := shape.parse(raw)
		if err != nil {
			return nil, &ConfigError{Option: o.Name, Reason: err.Error()}
		}
		if ok {
			return v, nil
		}
		names = append(names, shape.Name())
	}
	return nil, &ConfigError{
		Option: o.Name,
		Reason: fmt.Sprintf("expected %s, got %T", strings.Join(names, " or "), raw),
	}
}

// JSONSchema renders the schema as a JSON schema object. A null config is
// accepted when no option is required, matching an empty YAML mapping.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s))
	var required []string
	for _, opt := range s {
		variants := make([]any, 0, len(opt.Accepts))
		for _, shape := range opt.Accepts {
			variants = append(variants, shape.jsonSchema())
		}
		props[opt.Name] = map[string]any{"anyOf": variants}
		if opt.Required {
			required = append(required, opt.Name)
		}
	}

	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
		return doc
	}
	doc["type"] = []any{"object", "null"}
	return doc
}

// Config is a validated action configuration keyed by option name.
type Config map[string]any

// Template returns the template option name, or nil when it is absent.
func (c Config) Template(name string) *Template {
	t, _ := c[name].(*Template)
	return t
}

// String returns the string option name, or "" when it is absent.
func (c Config) String(name string) string {
	s, _ := c[name].(string)
	return s
}

// Bool returns the boolean option name, or false when it is absent.
func (c Config) Bool(name string) bool {
	b, _ := c[name].(bool)
	return b
}

// Strings returns the string list option name.
func (c Config) Strings(name string) []string {
	l, _ := c[name].([]string)
	return l
}

// IsConfigError reports whether err is a configuration validation error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
