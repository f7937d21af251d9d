// Package rules loads the pull_request_rules file of a repository and
// matches its rules against a pull request.
package rules

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ericfisherdev/prpilot/internal/action"
	"github.com/ericfisherdev/prpilot/internal/domain/model"
	"github.com/ericfisherdev/prpilot/internal/domain/port/driven"
)

// DefaultPath is where the rules file is looked up in a repository.
const DefaultPath = ".prpilot.yml"

// RuleAction is an action configured by a rule.
type RuleAction struct {
	Kind   action.Kind
	Config action.Config
}

// Build instantiates the configured action.
func (ra RuleAction) Build() (action.Action, error) {
	return ra.Kind.New(ra.Config)
}

// Rule is one pull_request_rules entry.
type Rule struct {
	Name       string
	Conditions []Condition
	Actions    []RuleAction // Sorted by action name.
}

// RuleSet is a validated rules file.
type RuleSet struct {
	Rules []Rule
}

// Match pairs a rule with its evaluation against a pull request.
type Match struct {
	Rule      *Rule
	Evaluated model.EvaluatedRule
}

// ValidationError lists every problem found in a rules file.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid rules file: " + strings.Join(e.Problems, "; ")
}

// Is lets errors.Is(err, model.ErrInvalidConfig) match.
func (e *ValidationError) Is(target error) bool {
	return target == model.ErrInvalidConfig
}

type fileDoc struct {
	Rules []ruleDoc `yaml:"pull_request_rules"`
}

type ruleDoc struct {
	Name       string                    `yaml:"name"`
	Conditions []string                  `yaml:"conditions"`
	Actions    map[string]map[string]any `yaml:"actions"`
}

// Load parses and validates a rules file. The document is first checked
// against the JSON schema derived from registry, then each condition and
// action configuration is parsed. An empty document is an empty RuleSet.
func Load(data []byte, registry *action.Registry) (*RuleSet, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return &RuleSet{}, nil
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}

	res, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(DocumentSchema(registry)),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("validating rules file: %w", err)
	}
	if !res.Valid() {
		problems := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			problems = append(problems, e.String())
		}
		return nil, &ValidationError{Problems: problems}
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Problems: []string{err.Error()}}
	}

	rs := &RuleSet{Rules: make([]Rule, 0, len(doc.Rules))}
	seen := make(map[string]struct{}, len(doc.Rules))
	var problems []string
	for _, rd := range doc.Rules {
		if _, dup := seen[rd.Name]; dup {
			problems = append(problems, fmt.Sprintf("rule %q: duplicate name", rd.Name))
			continue
		}
		seen[rd.Name] = struct{}{}

		rule, errs := buildRule(rd, registry)
		problems = append(problems, errs...)
		rs.Rules = append(rs.Rules, rule)
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return rs, nil
}

func buildRule(rd ruleDoc, registry *action.Registry) (Rule, []string) {
	rule := Rule{Name: rd.Name}
	var problems []string

	for _, raw := range rd.Conditions {
		cond, err := ParseCondition(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("rule %q: %v", rd.Name, err))
			continue
		}
		rule.Conditions = append(rule.Conditions, cond)
	}

	names := make([]string, 0, len(rd.Actions))
	for name := range rd.Actions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		kind, err := registry.Get(name)
		if err != nil {
			problems = append(problems, fmt.Sprintf("rule %q: %v", rd.Name, err))
			continue
		}
		cfg, err := kind.Schema.Validate(rd.Actions[name])
		if err != nil {
			problems = append(problems, fmt.Sprintf("rule %q: action %s: %v", rd.Name, name, err))
			continue
		}
		rule.Actions = append(rule.Actions, RuleAction{Kind: kind, Config: cfg})
	}
	return rule, problems
}

// DocumentSchema returns the JSON schema of a rules file accepting the
// actions of registry.
func DocumentSchema(registry *action.Registry) map[string]any {
	actions := make(map[string]any)
	for _, name := range registry.Names() {
		kind, _ := registry.Get(name)
		actions[name] = kind.Schema.JSONSchema()
	}

	rule := map[string]any{
		"type":                 "object",
		"required":             []any{"name", "conditions", "actions"},
		"additionalProperties": false,
		"properties": map[string]any{
			"name": map[string]any{"type": "string", "minLength": 1},
			"conditions": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
			"actions": map[string]any{
				"type":                 "object",
				"minProperties":        1,
				"additionalProperties": false,
				"properties":           actions,
			},
		},
	}

	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"required":             []any{"pull_request_rules"},
		"additionalProperties": false,
		"properties": map[string]any{
			"pull_request_rules": map[string]any{
				"type":  "array",
				"items": rule,
			},
		},
	}
}

// Evaluate matches every rule against the pull request, in file order.
func (rs *RuleSet) Evaluate(ctx context.Context, pctx driven.PullContext) ([]Match, error) {
	if len(rs.Rules) == 0 {
		return nil, nil
	}

	attrs, err := pctx.Attributes(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading attributes: %w", err)
	}

	matches := make([]Match, 0, len(rs.Rules))
	for i := range rs.Rules {
		rule := &rs.Rules[i]
		ev := model.EvaluatedRule{Name: rule.Name, Matched: true}
		for _, cond := range rule.Conditions {
			ev.Conditions = append(ev.Conditions, cond.String())
			ok, err := cond.Match(attrs)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", rule.Name, err)
			}
			if !ok {
				ev.Matched = false
				ev.MissingConditions = append(ev.MissingConditions, cond.String())
			}
		}
		matches = append(matches, Match{Rule: rule, Evaluated: ev})
	}
	return matches, nil
}
