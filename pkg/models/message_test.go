package models

import (
	"encoding/json"
	"testing"
)

func TestMessageConstructors(t *testing.T) {
	user := UserMessage("hello")
	if user.Role != RoleUser || user.Content != "hello" {
		t.Errorf("UserMessage = %+v", user)
	}

	call := ToolInvocation{ID: "call-1", Name: "lookup", Arguments: json.RawMessage(`{"q":"x"}`)}
	assistant := AssistantMessage("thinking", call)
	if assistant.Role != RoleAssistant || len(assistant.ToolCalls) != 1 {
		t.Errorf("AssistantMessage = %+v", assistant)
	}
	if assistant.ToolCalls[0].Name != "lookup" {
		t.Errorf("tool call name = %q", assistant.ToolCalls[0].Name)
	}

	result := ToolResultMessage("call-1", "lookup", "found it", false)
	if result.Role != RoleTool || result.ToolCallID != "call-1" || result.ToolName != "lookup" {
		t.Errorf("ToolResultMessage = %+v", result)
	}
	if result.IsError {
		t.Error("result should not be an error")
	}

	failed := ToolResultMessage("call-2", "lookup", "boom", true)
	if !failed.IsError {
		t.Error("failed result should carry IsError")
	}
}

func TestCloneConversation_DeepCopy(t *testing.T) {
	original := []Message{
		UserMessage("hi"),
		AssistantMessage("", ToolInvocation{ID: "call-1", Name: "lookup"}),
	}

	cloned := CloneConversation(original)
	if len(cloned) != 2 {
		t.Fatalf("len = %d, want 2", len(cloned))
	}

	// Mutating the clone's tool calls must not touch the original.
	cloned[1].ToolCalls[0].Name = "changed"
	if original[1].ToolCalls[0].Name != "lookup" {
		t.Error("clone shares tool call backing array with original")
	}

	// Appending to the clone must not touch the original.
	cloned = append(cloned, UserMessage("extra"))
	if len(original) != 2 {
		t.Error("append to clone affected original")
	}
}

func TestCloneConversation_Empty(t *testing.T) {
	if got := CloneConversation(nil); len(got) != 0 {
		t.Errorf("CloneConversation(nil) = %v", got)
	}
}

func TestMessage_Arguments(t *testing.T) {
	msg := AssistantMessage("", ToolInvocation{ID: "c1", Name: "t", Arguments: json.RawMessage(`{"a":1}`)})
	if string(msg.Arguments()) != `{"a":1}` {
		t.Errorf("Arguments = %s", msg.Arguments())
	}

	if UserMessage("plain").Arguments() != nil {
		t.Error("Arguments on plain message should be nil")
	}
}

func TestToolCallState_Transitions(t *testing.T) {
	tests := []struct {
		state    ToolCallState
		valid    bool
		terminal bool
	}{
		{ToolCallInitiated, true, false},
		{ToolCallExecuting, true, false},
		{ToolCallCompleted, true, true},
		{ToolCallFailed, true, true},
		{ToolCallState("unknown"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
			if got := tt.state.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}
