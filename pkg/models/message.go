package models

import "encoding/json"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser is a human or delegating-parent turn.
	RoleUser Role = "user"
	// RoleAssistant is a model turn, possibly carrying tool invocations.
	RoleAssistant Role = "assistant"
	// RoleTool is a tool result turn answering an assistant invocation.
	RoleTool Role = "tool"
)

// ToolInvocation is a tool call embedded in an assistant message.
type ToolInvocation struct {
	// ID is the model-assigned call identifier.
	ID string `json:"id"`
	// Name is the tool name requested.
	Name string `json:"name"`
	// Arguments is the raw JSON argument payload.
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is one entry in a conversation. Conversations are owned by a
// single run loop; delegation hands a sub-agent a copy, never a reference.
type Message struct {
	// Role identifies the author of the message.
	Role Role `json:"role"`
	// Content is the text content, if any.
	Content string `json:"content,omitempty"`
	// ToolCalls lists tool invocations on assistant messages.
	ToolCalls []ToolInvocation `json:"tool_calls,omitempty"`
	// ToolCallID links a tool result message to its invocation.
	ToolCallID string `json:"tool_call_id,omitempty"`
	// ToolName is the name of the tool that produced a result message.
	ToolName string `json:"tool_name,omitempty"`
	// IsError marks a tool result that carries an error payload.
	IsError bool `json:"is_error,omitempty"`
}

// UserMessage builds a user turn.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant turn with optional tool invocations.
func AssistantMessage(content string, calls ...ToolInvocation) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolResultMessage builds a tool result turn for the given call.
func ToolResultMessage(callID, toolName, content string, isError bool) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: callID,
		ToolName:   toolName,
		IsError:    isError,
	}
}

// CloneConversation returns a deep copy of the given message sequence.
// Sub-agents are seeded with copies so no two run loops share state.
func CloneConversation(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if len(msgs[i].ToolCalls) > 0 {
			out[i].ToolCalls = make([]ToolInvocation, len(msgs[i].ToolCalls))
			copy(out[i].ToolCalls, msgs[i].ToolCalls)
		}
	}
	return out
}

// Arguments returns the raw arguments of the first tool invocation, or nil.
// Convenience for single-call assistant messages.
func (m Message) Arguments() json.RawMessage {
	if len(m.ToolCalls) == 0 {
		return nil
	}
	return m.ToolCalls[0].Arguments
}
