package model

// Result is the outcome of a single action invocation. Every execution path
// of an action produces exactly one Result, or an unexpected error. A Result
// is a value: copies are independent and nothing mutates it after NewResult.
type Result struct {
	Conclusion Conclusion
	Title      string // One line.
	Summary    string // Optional remediation detail, may be empty.
}

// NewResult builds a Result.
func NewResult(conclusion Conclusion, title, summary string) Result {
	return Result{
		Conclusion: conclusion,
		Title:      title,
		Summary:    summary,
	}
}
