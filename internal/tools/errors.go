package tools

import "fmt"

// ErrToolUnavailable is returned when a call targets a tool that is
// neither in the local registry nor reachable through a remote host.
// This indicates a capability mismatch, not a transient execution
// failure; callers should not retry.
type ErrToolUnavailable struct {
	ToolName string
}

func (e *ErrToolUnavailable) Error() string {
	return fmt.Sprintf("tool %q is not available", e.ToolName)
}

// DispatchError wraps a failure inside tool execution, distinguishing
// where in dispatch it occurred.
type DispatchError struct {
	ToolName string
	Remote   bool
	Err      error
}

func (e *DispatchError) Error() string {
	origin := "local"
	if e.Remote {
		origin = "remote"
	}
	return fmt.Sprintf("dispatch %s tool %q: %v", origin, e.ToolName, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
