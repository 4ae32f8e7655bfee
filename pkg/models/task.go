package models

import "time"

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskStatusCreated indicates the task has been registered but not started.
	TaskStatusCreated TaskStatus = "created"
	// TaskStatusRunning indicates the task's supervisor loop is executing.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusInterrupted indicates an agent is suspended awaiting a human answer.
	TaskStatusInterrupted TaskStatus = "interrupted"
	// TaskStatusCompleted indicates the task finished with a final answer.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task ended with an unrecoverable error.
	TaskStatusFailed TaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusCreated, TaskStatusRunning, TaskStatusInterrupted,
		TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a final state.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task represents one orchestrated unit of work driven by a supervisor agent.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Description is the user-supplied goal for the task.
	Description string `json:"description"`
	// Status is the current state of the task.
	Status TaskStatus `json:"status"`
	// Phase is a short label for what the task is currently doing.
	Phase string `json:"phase,omitempty"`
	// Progress is the completion percentage (0-100), advisory only.
	Progress int `json:"progress"`
	// FinalAnswer holds the supervisor's final content once completed.
	FinalAnswer string `json:"final_answer,omitempty"`
	// Error contains the error message if the task failed.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the task was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task reached a terminal state, if applicable.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
