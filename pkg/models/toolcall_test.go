package models

import "testing"

func TestToolCallState_Valid(t *testing.T) {
	tests := []struct {
		name  string
		state ToolCallState
		want  bool
	}{
		{"initiated is valid", ToolCallInitiated, true},
		{"executing is valid", ToolCallExecuting, true},
		{"completed is valid", ToolCallCompleted, true},
		{"failed is valid", ToolCallFailed, true},
		{"empty string is invalid", ToolCallState(""), false},
		{"unknown state is invalid", ToolCallState("pending"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Valid(); got != tt.want {
				t.Errorf("ToolCallState(%q).Valid() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

func TestToolCallState_Terminal(t *testing.T) {
	tests := []struct {
		name  string
		state ToolCallState
		want  bool
	}{
		{"initiated is not terminal", ToolCallInitiated, false},
		{"executing is not terminal", ToolCallExecuting, false},
		{"completed is terminal", ToolCallCompleted, true},
		{"failed is terminal", ToolCallFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Terminal(); got != tt.want {
				t.Errorf("ToolCallState(%q).Terminal() = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}
