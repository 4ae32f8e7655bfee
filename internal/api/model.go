package api

import (
	"context"
	"encoding/json"

	"github.com/conductor-ai/conductor/internal/tools"
	"github.com/conductor-ai/conductor/pkg/models"
)

// ToolCallRequest is one tool invocation the model asked for.
type ToolCallRequest struct {
	// ID is the model-assigned call identifier.
	ID string
	// Name is the requested tool.
	Name string
	// Arguments is the raw JSON argument payload.
	Arguments json.RawMessage
}

// GenerateResponse is one model turn: final content, requested tool calls,
// or both.
type GenerateResponse struct {
	// Content is the text the model produced.
	Content string
	// ToolCalls lists the tool invocations the model requested. Empty
	// means Content is the final answer.
	ToolCalls []ToolCallRequest
	// InputTokens and OutputTokens report usage for this call.
	InputTokens  int64
	OutputTokens int64
}

// ModelCaller is the model capability the run loop consumes. Implementations
// may fail with transient provider errors; the run loop treats any error as
// unrecoverable for the current task.
type ModelCaller interface {
	Generate(ctx context.Context, system string, conversation []models.Message, toolset []*tools.Tool) (*GenerateResponse, error)
}
