package state

import (
	"context"
	"testing"
	"time"

	"github.com/conductor-ai/conductor/internal/orchestrator"
	"github.com/conductor-ai/conductor/internal/tools"
	"github.com/conductor-ai/conductor/pkg/models"
)

func testCheckpoint(taskID, agentID string) *orchestrator.Checkpoint {
	return &orchestrator.Checkpoint{
		TaskID:            taskID,
		AgentID:           agentID,
		PendingToolCallID: "call-1",
		Question: tools.QuestionArgs{
			Prompt:  "Which fiscal year?",
			Options: []string{"2025", "2026"},
		},
		SystemPrompt: "be helpful",
		Conversation: []models.Message{
			models.UserMessage("summarize the numbers"),
			models.AssistantMessage("", models.ToolInvocation{ID: "call-1", Name: tools.QuestionToolName}),
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestCheckpointStore_SaveAndLoad(t *testing.T) {
	db := setupTestDB(t)
	store := NewCheckpointStore(db)
	ctx := context.Background()

	cp := testCheckpoint("task-1", "agent-1")
	if err := store.Save(ctx, cp); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx, "task-1", "agent-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got == nil {
		t.Fatal("Load returned nil for saved checkpoint")
	}
	if got.PendingToolCallID != "call-1" {
		t.Errorf("PendingToolCallID = %q, want call-1", got.PendingToolCallID)
	}
	if got.Question.Prompt != "Which fiscal year?" {
		t.Errorf("Question.Prompt = %q", got.Question.Prompt)
	}
	if len(got.Conversation) != 2 {
		t.Errorf("len(Conversation) = %d, want 2", len(got.Conversation))
	}
	if got.Conversation[1].ToolCalls[0].Name != tools.QuestionToolName {
		t.Errorf("tool call name = %q", got.Conversation[1].ToolCalls[0].Name)
	}
}

func TestCheckpointStore_LoadMissing(t *testing.T) {
	db := setupTestDB(t)
	store := NewCheckpointStore(db)

	got, err := store.Load(context.Background(), "task-x", "agent-x")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing checkpoint, got %+v", got)
	}
}

func TestCheckpointStore_Delete(t *testing.T) {
	db := setupTestDB(t)
	store := NewCheckpointStore(db)
	ctx := context.Background()

	if err := store.Save(ctx, testCheckpoint("task-1", "agent-1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(ctx, "task-1", "agent-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := store.Load(ctx, "task-1", "agent-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != nil {
		t.Error("checkpoint still present after delete")
	}

	// Deleting again is not an error.
	if err := store.Delete(ctx, "task-1", "agent-1"); err != nil {
		t.Errorf("Delete of missing checkpoint failed: %v", err)
	}
}

func TestCheckpointStore_OnePerPair(t *testing.T) {
	db := setupTestDB(t)
	store := NewCheckpointStore(db)
	ctx := context.Background()

	first := testCheckpoint("task-1", "agent-1")
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second := testCheckpoint("task-1", "agent-1")
	second.Question.Prompt = "replaced"
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("Save replacement failed: %v", err)
	}

	got, err := store.Load(ctx, "task-1", "agent-1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Question.Prompt != "replaced" {
		t.Errorf("Question.Prompt = %q, want replaced", got.Question.Prompt)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM checkpoints").Scan(&count); err != nil {
		t.Fatalf("count checkpoints: %v", err)
	}
	if count != 1 {
		t.Errorf("checkpoint rows = %d, want 1", count)
	}
}

func TestCheckpointStore_LoadByTask(t *testing.T) {
	db := setupTestDB(t)
	store := NewCheckpointStore(db)
	ctx := context.Background()

	if err := store.Save(ctx, testCheckpoint("task-1", "agent-1")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cp, err := store.LoadByTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("LoadByTask failed: %v", err)
	}
	if cp == nil || cp.AgentID != "agent-1" {
		t.Fatalf("checkpoint = %+v", cp)
	}
	if cp.Question.Prompt != "Which fiscal year?" {
		t.Errorf("Prompt = %q", cp.Question.Prompt)
	}

	missing, err := store.LoadByTask(ctx, "task-none")
	if err != nil {
		t.Fatalf("LoadByTask for missing task failed: %v", err)
	}
	if missing != nil {
		t.Errorf("checkpoint for unknown task = %+v", missing)
	}
}
