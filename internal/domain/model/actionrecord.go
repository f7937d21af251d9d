package model

import "time"

// Trigger identifies what caused an action to run.
type Trigger string

const (
	TriggerRule    Trigger = "rule"    // A matching pull_request_rules entry.
	TriggerCommand Trigger = "command" // A manual "@prpilot <action>" comment.
)

// ActionRecord is the persisted history entry for one action invocation.
type ActionRecord struct {
	ID           int64
	RunID        string // Shared by every action executed in the same evaluation pass.
	RepoFullName string
	PRNumber     int
	HeadSHA      string
	RuleName     string
	Action       string
	Trigger      Trigger
	Result       Result
	RanAt        time.Time
}
