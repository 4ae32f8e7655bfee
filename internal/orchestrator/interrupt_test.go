package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/conductor-ai/conductor/internal/events"
	"github.com/conductor-ai/conductor/internal/tools"
	"github.com/conductor-ai/conductor/pkg/models"
)

func testControllerCheckpoint(taskID, agentID string) *Checkpoint {
	return &Checkpoint{
		TaskID:            taskID,
		AgentID:           agentID,
		PendingToolCallID: "call-1",
		Question:          tools.QuestionArgs{Prompt: "Which year?"},
		SystemPrompt:      "be helpful",
		Conversation:      []models.Message{models.UserMessage("hi")},
		CreatedAt:         time.Now().UTC(),
	}
}

func TestInterrupt_EmitsApprovalEvent(t *testing.T) {
	sink := &recordingSink{}
	ctrl := NewInterruptController(NewMemoryCheckpointStore(), sink)
	ctx := context.Background()

	if err := ctrl.Interrupt(ctx, testControllerCheckpoint("task-1", "agent-1")); err != nil {
		t.Fatalf("Interrupt failed: %v", err)
	}

	approvals := sink.ofType(events.TypeApprovalRequired)
	if len(approvals) != 1 {
		t.Fatalf("approval events = %d, want 1", len(approvals))
	}
	payload, ok := approvals[0].Payload.(events.ApprovalPayload)
	if !ok {
		t.Fatalf("payload type = %T", approvals[0].Payload)
	}
	if payload.Kind != "question" || payload.Prompt != "Which year?" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestInterrupt_SecondRejected(t *testing.T) {
	ctrl := NewInterruptController(NewMemoryCheckpointStore(), &recordingSink{})
	ctx := context.Background()

	if err := ctrl.Interrupt(ctx, testControllerCheckpoint("task-1", "agent-1")); err != nil {
		t.Fatalf("first Interrupt failed: %v", err)
	}

	second := testControllerCheckpoint("task-1", "agent-1")
	second.Question.Prompt = "another question"
	err := ctrl.Interrupt(ctx, second)
	if !errors.Is(err, ErrAlreadyInterrupted) {
		t.Fatalf("err = %v, want ErrAlreadyInterrupted", err)
	}

	// Original checkpoint intact.
	cp, err := ctrl.Pending(ctx, "task-1", "agent-1")
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if cp == nil || cp.Question.Prompt != "Which year?" {
		t.Errorf("pending checkpoint = %+v", cp)
	}
}

func TestInterrupt_DistinctAgentsIndependent(t *testing.T) {
	ctrl := NewInterruptController(NewMemoryCheckpointStore(), &recordingSink{})
	ctx := context.Background()

	if err := ctrl.Interrupt(ctx, testControllerCheckpoint("task-1", "agent-1")); err != nil {
		t.Fatalf("Interrupt agent-1 failed: %v", err)
	}
	if err := ctrl.Interrupt(ctx, testControllerCheckpoint("task-1", "agent-2")); err != nil {
		t.Errorf("Interrupt agent-2 failed: %v", err)
	}
}

func TestTake_ConsumesExactlyOnce(t *testing.T) {
	ctrl := NewInterruptController(NewMemoryCheckpointStore(), &recordingSink{})
	ctx := context.Background()

	if err := ctrl.Interrupt(ctx, testControllerCheckpoint("task-1", "agent-1")); err != nil {
		t.Fatalf("Interrupt failed: %v", err)
	}

	cp, err := ctrl.Take(ctx, "task-1", "agent-1")
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if cp.PendingToolCallID != "call-1" {
		t.Errorf("PendingToolCallID = %q", cp.PendingToolCallID)
	}

	_, err = ctrl.Take(ctx, "task-1", "agent-1")
	if !errors.Is(err, ErrNoPendingInterrupt) {
		t.Fatalf("second Take err = %v, want ErrNoPendingInterrupt", err)
	}
}

func TestTake_NothingPending(t *testing.T) {
	ctrl := NewInterruptController(NewMemoryCheckpointStore(), &recordingSink{})

	_, err := ctrl.Take(context.Background(), "task-x", "agent-x")
	if !errors.Is(err, ErrNoPendingInterrupt) {
		t.Fatalf("err = %v, want ErrNoPendingInterrupt", err)
	}
}

func TestInterrupt_ThenResumeThenInterruptAgain(t *testing.T) {
	ctrl := NewInterruptController(NewMemoryCheckpointStore(), &recordingSink{})
	ctx := context.Background()

	if err := ctrl.Interrupt(ctx, testControllerCheckpoint("task-1", "agent-1")); err != nil {
		t.Fatalf("Interrupt failed: %v", err)
	}
	if _, err := ctrl.Take(ctx, "task-1", "agent-1"); err != nil {
		t.Fatalf("Take failed: %v", err)
	}

	// After consumption the pair is running again and may re-interrupt.
	if err := ctrl.Interrupt(ctx, testControllerCheckpoint("task-1", "agent-1")); err != nil {
		t.Errorf("re-Interrupt failed: %v", err)
	}
}
