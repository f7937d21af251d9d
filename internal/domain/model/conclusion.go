package model

import "fmt"

// Conclusion is the outcome tag attached to an action Result. The values
// mirror the GitHub Checks API conclusions so a Result can be reported as a
// check run without translation.
type Conclusion string

const (
	ConclusionSuccess        Conclusion = "success"
	ConclusionFailure        Conclusion = "failure"
	ConclusionNeutral        Conclusion = "neutral"
	ConclusionCancelled      Conclusion = "cancelled"
	ConclusionSkipped        Conclusion = "skipped"
	ConclusionTimedOut       Conclusion = "timed_out"
	ConclusionActionRequired Conclusion = "action_required"
	ConclusionPending        Conclusion = "pending" // No conclusion yet; reported as an in-progress check.
)

var conclusions = map[Conclusion]struct{}{
	ConclusionSuccess:        {},
	ConclusionFailure:        {},
	ConclusionNeutral:        {},
	ConclusionCancelled:      {},
	ConclusionSkipped:        {},
	ConclusionTimedOut:       {},
	ConclusionActionRequired: {},
	ConclusionPending:        {},
}

// ParseConclusion converts a stored or API string into a Conclusion.
func ParseConclusion(s string) (Conclusion, error) {
	c := Conclusion(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown conclusion %q", s)
	}
	return c, nil
}

// IsValid reports whether c is one of the known conclusions.
func (c Conclusion) IsValid() bool {
	_, ok := conclusions[c]
	return ok
}

// Completed returns false only for ConclusionPending.
func (c Conclusion) Completed() bool {
	return c != ConclusionPending
}

// Emoji returns the marker used when a Result is rendered into a comment.
func (c Conclusion) Emoji() string {
	switch c {
	case ConclusionSuccess:
		return "✅"
	case ConclusionFailure, ConclusionTimedOut:
		return "❌"
	case ConclusionActionRequired:
		return "⚠️"
	case ConclusionPending:
		return "🟠"
	default:
		return "⚪"
	}
}
