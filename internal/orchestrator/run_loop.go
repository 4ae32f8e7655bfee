package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conductor-ai/conductor/internal/api"
	"github.com/conductor-ai/conductor/internal/events"
	"github.com/conductor-ai/conductor/internal/tools"
	"github.com/conductor-ai/conductor/pkg/models"
)

// defaultMaxIterations bounds a run loop's model calls.
const defaultMaxIterations = 50

// EventSink receives every event the orchestration layer produces. The
// broadcaster satisfies it; the orchestrator layers a durable log on top.
type EventSink interface {
	Publish(ev events.Event)
}

// RunInput carries one agent's loop invocation.
type RunInput struct {
	// Agent is the agent being driven. Its status is mutated in place.
	Agent *models.Agent
	// SystemPrompt is the agent's system instructions.
	SystemPrompt string
	// Conversation is the seed conversation. The loop owns it from here.
	Conversation []models.Message
	// Registry is the agent's tool set.
	Registry *tools.Registry
}

// RunResult is the outcome of a run loop invocation: either a final answer
// or a suspension awaiting a human answer.
type RunResult struct {
	// FinalAnswer is the model's terminal content when not suspended.
	FinalAnswer string
	// Suspended is true when the loop checkpointed on a clarifying question.
	Suspended bool
	// Question is the pending question when suspended.
	Question tools.QuestionArgs
	// Conversation is the full conversation at exit.
	Conversation []models.Message
	// Iterations is the number of model calls made.
	Iterations int
	// ToolCalls is the number of tool calls dispatched.
	ToolCalls int
	// Calls is the audit trail of executed tool calls, in issue order.
	Calls []models.ToolCall
}

// RunLoop drives one agent's think/act/observe cycle to completion or
// suspension. A single RunLoop value is reusable across agents; all
// per-invocation state lives in RunInput.
type RunLoop struct {
	model         api.ModelCaller
	sink          EventSink
	interrupts    *InterruptController
	maxIterations int
}

// NewRunLoop creates a run loop over the given model capability.
func NewRunLoop(model api.ModelCaller, sink EventSink, interrupts *InterruptController, maxIterations int) *RunLoop {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	return &RunLoop{
		model:         model,
		sink:          sink,
		interrupts:    interrupts,
		maxIterations: maxIterations,
	}
}

// Run executes the loop: ask the model, dispatch requested tools, feed
// results back, and repeat until the model answers with plain content or
// asks the human a clarifying question.
func (l *RunLoop) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	result := &RunResult{}
	conv := in.Conversation

	l.setStatus(in.Agent, models.AgentStatusActive)
	defer l.setStatus(in.Agent, models.AgentStatusIdle)

	for result.Iterations < l.maxIterations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Iterations++

		l.sink.Publish(events.New(events.TypeThinkingUpdate, in.Agent.TaskID, in.Agent.ID,
			events.ThinkingPayload{Status: events.StreamStarted}))

		resp, err := l.model.Generate(ctx, in.SystemPrompt, conv, in.Registry.List())
		if err != nil {
			return nil, fmt.Errorf("model call: %w", err)
		}

		l.sink.Publish(events.New(events.TypeThinkingUpdate, in.Agent.TaskID, in.Agent.ID,
			events.ThinkingPayload{Status: events.StreamComplete}))

		if len(resp.ToolCalls) == 0 {
			conv = append(conv, models.AssistantMessage(resp.Content))
			l.streamFinalContent(in.Agent, resp.Content)
			result.FinalAnswer = resp.Content
			result.Conversation = conv
			return result, nil
		}

		invocations := make([]models.ToolInvocation, len(resp.ToolCalls))
		for i, call := range resp.ToolCalls {
			invocations[i] = models.ToolInvocation{ID: call.ID, Name: call.Name, Arguments: call.Arguments}
		}
		conv = append(conv, models.AssistantMessage(resp.Content, invocations...))
		if resp.Content != "" {
			l.sink.Publish(events.New(events.TypeDialogueUpdate, in.Agent.TaskID, in.Agent.ID,
				events.DialoguePayload{
					Direction: events.DirectionOutput,
					Kind:      events.ContentText,
					Data:      resp.Content,
					Sender:    in.Agent.ID,
				}))
		}

		// Split the batch: the clarifying-question tool suspends the loop
		// instead of executing, everything else dispatches normally.
		var question *api.ToolCallRequest
		var dispatchable []api.ToolCallRequest
		for i := range resp.ToolCalls {
			call := resp.ToolCalls[i]
			l.sink.Publish(events.New(events.TypeToolCallInitiated, in.Agent.TaskID, in.Agent.ID,
				events.ToolCallPayload{ToolCallID: call.ID, ToolName: call.Name, Arguments: call.Arguments}))
			if call.Name == tools.QuestionToolName && question == nil {
				question = &resp.ToolCalls[i]
			} else {
				dispatchable = append(dispatchable, call)
			}
		}

		l.setStatus(in.Agent, models.AgentStatusProcessing)
		results, records := l.dispatchBatch(ctx, in, dispatchable)
		result.ToolCalls += len(dispatchable)
		result.Calls = append(result.Calls, records...)

		// Results merge back in call-issue order regardless of completion
		// order, keeping conversation history deterministic.
		for i, call := range dispatchable {
			conv = append(conv, models.ToolResultMessage(call.ID, call.Name, results[i].Content, results[i].IsError))
		}

		if question != nil {
			result.ToolCalls++
			// The question tool never passes through Dispatch, but it is
			// still a non-status action: clear the agent's rate-limit streak.
			in.Registry.ResetStreak(in.Agent.ID)
			suspended, msg, err := l.suspendOnQuestion(ctx, in, question, conv)
			if err != nil {
				return nil, err
			}
			if suspended != nil {
				result.Suspended = true
				result.Question = suspended.Question
				result.Conversation = conv
				return result, nil
			}
			// Malformed or double question: feed the error back and keep going.
			conv = append(conv, msg)
		}

		l.setStatus(in.Agent, models.AgentStatusActive)
	}

	return nil, fmt.Errorf("max iterations (%d) reached without a final answer", l.maxIterations)
}

// suspendOnQuestion checkpoints the loop for the pending question. It
// returns the saved checkpoint, or a tool-result message to append when the
// question could not suspend the loop (bad arguments, already interrupted).
func (l *RunLoop) suspendOnQuestion(ctx context.Context, in RunInput, call *api.ToolCallRequest, conv []models.Message) (*Checkpoint, models.Message, error) {
	args, err := tools.ParseQuestionArgs(call.Arguments)
	if err != nil {
		l.sink.Publish(events.New(events.TypeToolCallFailed, in.Agent.TaskID, in.Agent.ID,
			events.ToolCallPayload{ToolCallID: call.ID, ToolName: call.Name, Error: err.Error()}))
		return nil, models.ToolResultMessage(call.ID, call.Name, err.Error(), true), nil
	}

	cp := &Checkpoint{
		TaskID:            in.Agent.TaskID,
		AgentID:           in.Agent.ID,
		PendingToolCallID: call.ID,
		Question:          args,
		SystemPrompt:      in.SystemPrompt,
		Conversation:      models.CloneConversation(conv),
		CreatedAt:         time.Now().UTC(),
	}
	if err := l.interrupts.Interrupt(ctx, cp); err != nil {
		if errors.Is(err, ErrAlreadyInterrupted) {
			l.sink.Publish(events.New(events.TypeToolCallFailed, in.Agent.TaskID, in.Agent.ID,
				events.ToolCallPayload{ToolCallID: call.ID, ToolName: call.Name, Error: err.Error()}))
			return nil, models.ToolResultMessage(call.ID, call.Name,
				"a question is already pending; wait for its answer before asking again", true), nil
		}
		return nil, models.Message{}, err
	}
	return cp, models.Message{}, nil
}

// dispatchBatch executes the batch and returns results and call records
// indexed by call-issue order. Batches where every tool is flagged
// independent fan out concurrently; anything else runs sequentially.
func (l *RunLoop) dispatchBatch(ctx context.Context, in RunInput, calls []api.ToolCallRequest) ([]tools.Result, []models.ToolCall) {
	results := make([]tools.Result, len(calls))
	records := make([]models.ToolCall, len(calls))
	if len(calls) == 0 {
		return results, records
	}

	if len(calls) > 1 && l.allIndependent(in.Registry, calls) {
		g, gctx := errgroup.WithContext(ctx)
		for i := range calls {
			g.Go(func() error {
				results[i], records[i] = l.dispatchOne(gctx, in, calls[i])
				return nil
			})
		}
		_ = g.Wait()
		return results, records
	}

	for i := range calls {
		results[i], records[i] = l.dispatchOne(ctx, in, calls[i])
	}
	return results, records
}

// allIndependent reports whether every call in the batch may run concurrently.
func (l *RunLoop) allIndependent(registry *tools.Registry, calls []api.ToolCallRequest) bool {
	for _, call := range calls {
		t, ok := registry.Get(call.Name)
		if !ok || !t.Independent {
			return false
		}
	}
	return true
}

// dispatchOne runs a single tool call, emits its lifecycle events, and
// returns the result alongside its terminal audit record.
func (l *RunLoop) dispatchOne(ctx context.Context, in RunInput, call api.ToolCallRequest) (tools.Result, models.ToolCall) {
	l.sink.Publish(events.New(events.TypeToolCallExecuting, in.Agent.TaskID, in.Agent.ID,
		events.ToolCallPayload{ToolCallID: call.ID, ToolName: call.Name}))

	started := time.Now()
	res := in.Registry.Dispatch(ctx, call.Name, tools.Call{
		ID:        call.ID,
		TaskID:    in.Agent.TaskID,
		AgentID:   in.Agent.ID,
		Arguments: call.Arguments,
	})
	duration := time.Since(started)
	elapsed := duration.Milliseconds()

	record := models.ToolCall{
		ID:        call.ID,
		Name:      call.Name,
		Arguments: call.Arguments,
		StartedAt: started.UTC(),
		Duration:  duration,
	}

	if res.IsError {
		record.State = models.ToolCallFailed
		record.Error = res.Content
		log.Printf("[runloop] tool %s failed for agent %s: %s", call.Name, in.Agent.ID, res.Content)
		l.sink.Publish(events.New(events.TypeToolCallFailed, in.Agent.TaskID, in.Agent.ID,
			events.ToolCallPayload{
				ToolCallID:  call.ID,
				ToolName:    call.Name,
				Error:       res.Content,
				ExecutionMS: elapsed,
			}))
		return res, record
	}

	record.State = models.ToolCallCompleted
	record.Result = truncateForEvent(res.Content)
	l.sink.Publish(events.New(events.TypeToolCallCompleted, in.Agent.TaskID, in.Agent.ID,
		events.ToolCallPayload{
			ToolCallID:  call.ID,
			ToolName:    call.Name,
			Result:      truncateForEvent(res.Content),
			ExecutionMS: elapsed,
		}))
	return res, record
}

// streamFinalContent emits the typing transition and the content stream for
// a final answer.
func (l *RunLoop) streamFinalContent(agent *models.Agent, content string) {
	l.setStatus(agent, models.AgentStatusTyping)
	l.sink.Publish(events.New(events.TypeContentStream, agent.TaskID, agent.ID,
		events.ContentStreamPayload{Status: events.StreamStarted}))
	l.sink.Publish(events.New(events.TypeContentStream, agent.TaskID, agent.ID,
		events.ContentStreamPayload{Status: events.StreamChunk, Content: content}))
	l.sink.Publish(events.New(events.TypeContentStream, agent.TaskID, agent.ID,
		events.ContentStreamPayload{Status: events.StreamComplete, FullContent: content}))
}

// setStatus transitions the agent's status and emits the change event.
// Re-entering the current status is a no-op.
func (l *RunLoop) setStatus(agent *models.Agent, status models.AgentStatus) {
	if agent.Status == status {
		return
	}
	old := agent.Status
	agent.Status = status
	l.sink.Publish(events.New(events.TypeAgentStatusChanged, agent.TaskID, agent.ID,
		events.AgentStatusPayload{OldStatus: old, NewStatus: status}))
}

// truncateForEvent bounds tool output carried in events.
func truncateForEvent(s string) string {
	if len(s) > 500 {
		return s[:500] + "..."
	}
	return s
}
