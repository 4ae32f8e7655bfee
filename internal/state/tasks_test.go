package state

import (
	"context"
	"testing"
	"time"

	"github.com/conductor-ai/conductor/pkg/models"
)

func testTask(id string, status models.TaskStatus) *models.Task {
	return &models.Task{
		ID:          id,
		Description: "summarize the quarterly numbers",
		Status:      status,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndGetTask(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := testTask("task-1", models.TaskStatusCreated)
	if err := db.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}

	got, err := db.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetTask returned nil for existing task")
	}
	if got.ID != task.ID || got.Description != task.Description || got.Status != task.Status {
		t.Errorf("got %+v, want %+v", got, task)
	}
	if !got.CreatedAt.Equal(task.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, task.CreatedAt)
	}
}

func TestGetTask_Unknown(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.GetTask(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown task, got %+v", got)
	}
}

func TestSaveTask_Upsert(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := testTask("task-1", models.TaskStatusRunning)
	if err := db.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	task.Status = models.TaskStatusCompleted
	task.FinalAnswer = "42"
	task.CompletedAt = &now
	if err := db.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask update failed: %v", err)
	}

	got, err := db.GetTask(ctx, "task-1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != models.TaskStatusCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if got.FinalAnswer != "42" {
		t.Errorf("FinalAnswer = %q, want %q", got.FinalAnswer, "42")
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(now) {
		t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, now)
	}
}

func TestListTasks_FilterByStatus(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, tc := range []struct {
		id     string
		status models.TaskStatus
	}{
		{"task-1", models.TaskStatusRunning},
		{"task-2", models.TaskStatusCompleted},
		{"task-3", models.TaskStatusRunning},
	} {
		if err := db.SaveTask(ctx, testTask(tc.id, tc.status)); err != nil {
			t.Fatalf("SaveTask %s failed: %v", tc.id, err)
		}
	}

	all, err := db.ListTasks(ctx, nil)
	if err != nil {
		t.Fatalf("ListTasks failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}

	running := models.TaskStatusRunning
	filtered, err := db.ListTasks(ctx, &running)
	if err != nil {
		t.Fatalf("ListTasks filtered failed: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("len(filtered) = %d, want 2", len(filtered))
	}
	for _, task := range filtered {
		if task.Status != models.TaskStatusRunning {
			t.Errorf("task %s status = %s, want running", task.ID, task.Status)
		}
	}
}

func TestRecoverStaleTasks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.SaveTask(ctx, testTask("task-run", models.TaskStatusRunning)); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}
	if err := db.SaveTask(ctx, testTask("task-int", models.TaskStatusInterrupted)); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}

	recovered, err := db.RecoverStaleTasks(ctx)
	if err != nil {
		t.Fatalf("RecoverStaleTasks failed: %v", err)
	}
	if recovered != 1 {
		t.Errorf("recovered = %d, want 1", recovered)
	}

	got, err := db.GetTask(ctx, "task-run")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != models.TaskStatusFailed {
		t.Errorf("running task status = %s, want failed", got.Status)
	}

	// Interrupted tasks keep their checkpointed state across restarts.
	got, err = db.GetTask(ctx, "task-int")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != models.TaskStatusInterrupted {
		t.Errorf("interrupted task status = %s, want interrupted", got.Status)
	}
}
