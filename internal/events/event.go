// Package events defines the event model and the fan-out layer that makes
// orchestration state visible to external subscribers.
package events

import (
	"encoding/json"
	"time"

	"github.com/conductor-ai/conductor/pkg/models"
)

// Type identifies the kind of event. The payload shape is fixed per type.
type Type string

const (
	// TypeTaskStatusChanged reports a task lifecycle transition.
	TypeTaskStatusChanged Type = "task_status_changed"
	// TypeAgentStatusChanged reports an agent status transition.
	TypeAgentStatusChanged Type = "agent_status_changed"
	// TypeDialogueUpdate reports a conversation append.
	TypeDialogueUpdate Type = "dialogue_update"
	// TypeToolCallInitiated reports that the model requested a tool call.
	TypeToolCallInitiated Type = "tool_call_initiated"
	// TypeToolCallExecuting reports that a tool handler started running.
	TypeToolCallExecuting Type = "tool_call_executing"
	// TypeToolCallCompleted reports a successful tool result.
	TypeToolCallCompleted Type = "tool_call_completed"
	// TypeToolCallFailed reports a tool handler error.
	TypeToolCallFailed Type = "tool_call_failed"
	// TypeThinkingUpdate reports reasoning progress.
	TypeThinkingUpdate Type = "thinking_update"
	// TypeContentStream reports answer content streaming.
	TypeContentStream Type = "content_stream"
	// TypeApprovalRequired reports a pending human question.
	TypeApprovalRequired Type = "approval_required"
)

// Event is an immutable record of one state transition. Events are the only
// channel through which internal orchestration state becomes visible to
// subscribers; per task they are published in transition order.
type Event struct {
	// Type discriminates the payload shape.
	Type Type `json:"event_type"`
	// TaskID is the owning task.
	TaskID string `json:"task_id"`
	// AgentID is the producing agent, if any.
	AgentID string `json:"agent_id,omitempty"`
	// Timestamp is when the transition occurred.
	Timestamp time.Time `json:"timestamp"`
	// Payload is one of the payload structs below, keyed by Type.
	Payload any `json:"payload"`
}

// TaskStatusPayload accompanies TypeTaskStatusChanged.
type TaskStatusPayload struct {
	OldStatus models.TaskStatus `json:"old_status"`
	NewStatus models.TaskStatus `json:"new_status"`
	Phase     string            `json:"phase,omitempty"`
	Progress  int               `json:"progress,omitempty"`
	Error     string            `json:"error,omitempty"`
	// FinalAnswer carries the completion content on terminal transitions.
	FinalAnswer string `json:"final_answer,omitempty"`
}

// AgentStatusPayload accompanies TypeAgentStatusChanged.
type AgentStatusPayload struct {
	OldStatus models.AgentStatus `json:"old_status"`
	NewStatus models.AgentStatus `json:"new_status"`
}

// Direction indicates whether dialogue content flowed into or out of an agent.
type Direction string

const (
	// DirectionInput is content given to the agent.
	DirectionInput Direction = "input"
	// DirectionOutput is content produced by the agent.
	DirectionOutput Direction = "output"
)

// ContentKind classifies dialogue content for renderers.
type ContentKind string

const (
	// ContentText is plain text.
	ContentText ContentKind = "text"
	// ContentCode is a code block.
	ContentCode ContentKind = "code"
	// ContentJSON is structured data.
	ContentJSON ContentKind = "json"
	// ContentChart is chart-renderable data.
	ContentChart ContentKind = "chart"
)

// DialoguePayload accompanies TypeDialogueUpdate.
type DialoguePayload struct {
	Direction Direction   `json:"direction"`
	Kind      ContentKind `json:"kind"`
	Data      string      `json:"data"`
	Sender    string      `json:"sender,omitempty"`
}

// ToolCallPayload accompanies the four tool call lifecycle types.
type ToolCallPayload struct {
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Result     string          `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	// ExecutionMS is the handler runtime in milliseconds, set on terminal states.
	ExecutionMS int64 `json:"execution_time_ms,omitempty"`
}

// StreamStatus marks the phase of a streamed sequence.
type StreamStatus string

const (
	// StreamStarted opens a streamed sequence.
	StreamStarted StreamStatus = "started"
	// StreamChunk carries one increment.
	StreamChunk StreamStatus = "chunk"
	// StreamComplete closes the sequence.
	StreamComplete StreamStatus = "complete"
)

// ThinkingPayload accompanies TypeThinkingUpdate.
type ThinkingPayload struct {
	Status  StreamStatus `json:"status"`
	Content string       `json:"content,omitempty"`
}

// ContentStreamPayload accompanies TypeContentStream.
type ContentStreamPayload struct {
	Status  StreamStatus `json:"status"`
	Content string       `json:"content,omitempty"`
	// FullContent carries the assembled text on the complete marker.
	FullContent string `json:"full_content,omitempty"`
}

// ApprovalPayload accompanies TypeApprovalRequired.
type ApprovalPayload struct {
	// Kind is the approval flavor; only "question" is produced today.
	Kind string `json:"kind"`
	// Prompt is the question put to the human.
	Prompt string `json:"prompt"`
	// Options optionally constrains the answer.
	Options []string `json:"options,omitempty"`
}

// New builds an event stamped with the current UTC time.
func New(t Type, taskID, agentID string, payload any) Event {
	return Event{
		Type:      t,
		TaskID:    taskID,
		AgentID:   agentID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}
