package model

// EvaluatedRule is the outcome of matching one configured rule against a
// pull request. It is handed to every action the rule triggers.
type EvaluatedRule struct {
	Name              string
	Conditions        []string
	Matched           bool
	MissingConditions []string // Conditions that did not hold, in declaration order.
}
