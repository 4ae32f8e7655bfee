package tools

import (
	"context"
	"encoding/json"

	"github.com/conductor-ai/conductor/internal/events"
)

// StatusToolName is the registered name of the progress-update tool.
const StatusToolName = "status_update"

// DefaultStatusLimit is how many back-to-back status updates an agent may
// send before it must take a different action.
const DefaultStatusLimit = 2

// Publisher is the subset of the broadcaster the builtin tools need.
type Publisher interface {
	Publish(ev events.Event)
}

// statusArgs is the argument payload for the status-update tool.
type statusArgs struct {
	Message  string `json:"message"`
	Phase    string `json:"phase,omitempty"`
	Progress int    `json:"progress,omitempty"`
}

// ProgressFunc receives phase and progress reported through the status tool
// so the task owner can record them.
type ProgressFunc func(taskID, phase string, progress int)

// NewStatusUpdateTool builds the pure progress-reporting tool. Consecutive
// invocations beyond limit are rejected by the registry with a rate_limited
// result so an agent cannot monopolize the event stream with status chatter.
// onProgress may be nil.
func NewStatusUpdateTool(pub Publisher, limit int, onProgress ProgressFunc) *Tool {
	if limit <= 0 {
		limit = DefaultStatusLimit
	}
	return &Tool{
		Name: StatusToolName,
		Description: "Report progress to observers. Use sparingly between " +
			"real actions; consecutive updates are limited.",
		Schema: ObjectSchema(map[string]Property{
			"message":  {Type: "string", Description: "Short human-readable progress note"},
			"phase":    {Type: "string", Description: "Current phase label"},
			"progress": {Type: "integer", Description: "Completion percentage 0-100"},
		}, "message"),
		Effect:           EffectPure,
		Independent:      true,
		ConsecutiveLimit: limit,
		Handler: func(ctx context.Context, call Call) Result {
			var args statusArgs
			if err := json.Unmarshal(call.Arguments, &args); err != nil {
				return Errorf("invalid_arguments", "invalid status_update arguments: %v", err)
			}
			if args.Message == "" {
				return Errorf("invalid_arguments", "status_update requires a message")
			}
			pub.Publish(events.New(events.TypeDialogueUpdate, call.TaskID, call.AgentID,
				events.DialoguePayload{
					Direction: events.DirectionOutput,
					Kind:      events.ContentText,
					Data:      args.Message,
					Sender:    call.AgentID,
				}))
			if onProgress != nil && (args.Phase != "" || args.Progress > 0) {
				onProgress(call.TaskID, args.Phase, args.Progress)
			}
			return Result{Content: "status delivered"}
		},
	}
}
