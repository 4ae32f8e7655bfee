package models

import (
	"encoding/json"
	"time"
)

// ToolCallState represents the lifecycle state of a tool call.
type ToolCallState string

const (
	// ToolCallInitiated indicates the model has requested the call.
	ToolCallInitiated ToolCallState = "initiated"
	// ToolCallExecuting indicates the handler is running.
	ToolCallExecuting ToolCallState = "executing"
	// ToolCallCompleted indicates the handler returned a result.
	ToolCallCompleted ToolCallState = "completed"
	// ToolCallFailed indicates the handler returned an error.
	ToolCallFailed ToolCallState = "failed"
)

// Valid returns true if the state is a known value.
func (s ToolCallState) Valid() bool {
	switch s {
	case ToolCallInitiated, ToolCallExecuting, ToolCallCompleted, ToolCallFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the state is final. Terminal tool calls are
// immutable and retained for the event history.
func (s ToolCallState) Terminal() bool {
	return s == ToolCallCompleted || s == ToolCallFailed
}

// ToolCall records one tool invocation requested by the model.
type ToolCall struct {
	// ID is the model-assigned identifier for this call.
	ID string `json:"id"`
	// Name is the registered tool name.
	Name string `json:"name"`
	// Arguments is the raw JSON argument payload from the model.
	Arguments json.RawMessage `json:"arguments,omitempty"`
	// State is the current lifecycle state.
	State ToolCallState `json:"state"`
	// Result holds the tool output once the call completed.
	Result string `json:"result,omitempty"`
	// Error holds the failure message if the call failed.
	Error string `json:"error,omitempty"`
	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`
	// Duration is how long the handler ran, set on completion.
	Duration time.Duration `json:"duration,omitempty"`
}
