package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/conductor-ai/conductor/internal/events"
)

// ErrAlreadyInterrupted is returned when an agent with a live checkpoint
// asks a second question before the first is resolved.
var ErrAlreadyInterrupted = errors.New("agent is already interrupted")

// ErrNoPendingInterrupt is returned when resume finds no live checkpoint
// for the (task, agent) pair.
var ErrNoPendingInterrupt = errors.New("no pending interrupt")

// InterruptController owns the Running/Interrupted state machine for every
// (task, agent) pair. The checkpoint store holds the authoritative state;
// the controller serializes transitions and emits the approval event.
type InterruptController struct {
	store CheckpointStore
	sink  EventSink
	mu    sync.Mutex
}

// NewInterruptController creates a controller over the given store.
func NewInterruptController(store CheckpointStore, sink EventSink) *InterruptController {
	return &InterruptController{store: store, sink: sink}
}

// Interrupt transitions the pair Running -> Interrupted: it persists the
// checkpoint and emits an approval_required event carrying the question.
// A pair that is already interrupted is rejected with ErrAlreadyInterrupted
// and the original checkpoint is left intact.
func (c *InterruptController) Interrupt(ctx context.Context, cp *Checkpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, err := c.store.Load(ctx, cp.TaskID, cp.AgentID)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if existing != nil {
		return ErrAlreadyInterrupted
	}

	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	if err := c.store.Save(ctx, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	log.Printf("[interrupt] task=%s agent=%s suspended: %q", cp.TaskID, cp.AgentID, cp.Question.Prompt)
	c.sink.Publish(events.New(events.TypeApprovalRequired, cp.TaskID, cp.AgentID,
		events.ApprovalPayload{
			Kind:    "question",
			Prompt:  cp.Question.Prompt,
			Options: cp.Question.Options,
		}))
	return nil
}

// Take consumes the live checkpoint for the pair, transitioning it back to
// Running. Returns ErrNoPendingInterrupt when there is nothing to resume.
func (c *InterruptController) Take(ctx context.Context, taskID, agentID string) (*Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp, err := c.store.Load(ctx, taskID, agentID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp == nil {
		return nil, ErrNoPendingInterrupt
	}
	if err := c.store.Delete(ctx, taskID, agentID); err != nil {
		return nil, fmt.Errorf("delete checkpoint: %w", err)
	}
	log.Printf("[interrupt] task=%s agent=%s resumed", taskID, agentID)
	return cp, nil
}

// Pending returns the live checkpoint for the pair without consuming it,
// or nil when the pair is running.
func (c *InterruptController) Pending(ctx context.Context, taskID, agentID string) (*Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Load(ctx, taskID, agentID)
}
