package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// QuestionToolName is the registered name of the clarifying-question tool.
// The run loop intercepts dispatches of this tool to suspend the agent; the
// handler below only runs if something dispatches it directly.
const QuestionToolName = "ask_user"

// QuestionArgs is the argument payload for the clarifying-question tool.
type QuestionArgs struct {
	// Prompt is the question to put to the human.
	Prompt string `json:"prompt"`
	// Options optionally constrains the acceptable answers.
	Options []string `json:"options,omitempty"`
	// Context carries optional background shown alongside the question.
	Context string `json:"context,omitempty"`
}

// ParseQuestionArgs validates and decodes clarifying-question arguments.
func ParseQuestionArgs(raw json.RawMessage) (QuestionArgs, error) {
	var args QuestionArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("invalid %s arguments: %w", QuestionToolName, err)
	}
	if args.Prompt == "" {
		return args, fmt.Errorf("%s requires a prompt", QuestionToolName)
	}
	return args, nil
}

// NewQuestionTool builds the clarifying-question tool definition. Its
// dispatch suspends the owning run loop until a human answer arrives.
func NewQuestionTool() *Tool {
	return &Tool{
		Name: QuestionToolName,
		Description: "Ask the human operator a clarifying question and wait " +
			"for the answer. Execution pauses until the answer arrives.",
		Schema: ObjectSchema(map[string]Property{
			"prompt":  {Type: "string", Description: "The question to ask"},
			"options": {Type: "array", Description: "Optional fixed answer choices"},
			"context": {Type: "string", Description: "Optional background for the question"},
		}, "prompt"),
		Effect: EffectPure,
		Handler: func(ctx context.Context, call Call) Result {
			return Errorf("needs_interrupt",
				"%s must be dispatched through the run loop", QuestionToolName)
		},
	}
}
