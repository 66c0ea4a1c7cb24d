package automation

import "errors"

// Errors for automation operations.
var (
	// ErrEngineClosed is returned when operating on a closed engine.
	ErrEngineClosed = errors.New("automation engine is closed")

	// ErrScriptNotFound is returned when a trigger names an unloaded script.
	ErrScriptNotFound = errors.New("script not found")
)
