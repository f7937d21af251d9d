package model

import "errors"

// Sentinel errors shared by ports and adapters. Use errors.Is to check.
var (
	// ErrNotFound indicates the requested remote object does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownAction indicates a rule or command names an unregistered action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrInvalidConfig indicates an action or rules configuration failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)
