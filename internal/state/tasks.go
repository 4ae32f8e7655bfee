package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/conductor-ai/conductor/pkg/models"
)

// SaveTask upserts a task snapshot.
func (db *DB) SaveTask(ctx context.Context, t *models.Task) error {
	var completedAt any
	if t.CompletedAt != nil {
		completedAt = formatTime(*t.CompletedAt)
	}
	_, err := db.Exec(`
		INSERT INTO tasks (id, description, status, phase, progress, final_answer, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			phase = excluded.phase,
			progress = excluded.progress,
			final_answer = excluded.final_answer,
			error = excluded.error,
			completed_at = excluded.completed_at
	`, t.ID, t.Description, string(t.Status), t.Phase, t.Progress,
		t.FinalAnswer, t.Error, formatTime(t.CreatedAt), completedAt)
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// GetTask returns the stored task, or nil if unknown.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	row := db.QueryRow(`
		SELECT id, description, status, phase, progress, final_answer, error, created_at, completed_at
		FROM tasks WHERE id = ?
	`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

// ListTasks returns stored tasks, newest first, optionally filtered by status.
func (db *DB) ListTasks(ctx context.Context, status *models.TaskStatus) ([]models.Task, error) {
	query := `
		SELECT id, description, status, phase, progress, final_answer, error, created_at, completed_at
		FROM tasks`
	var args []any
	if status != nil {
		query += " WHERE status = ?"
		args = append(args, string(*status))
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// RecoverStaleTasks marks tasks left in the running state by a dead process
// as failed. Interrupted tasks survive restarts untouched; their checkpoints
// are still resumable.
func (db *DB) RecoverStaleTasks(ctx context.Context) (int64, error) {
	result, err := db.Exec(`
		UPDATE tasks SET status = ?, error = 'process exited while task was running'
		WHERE status = ?
	`, string(models.TaskStatusFailed), string(models.TaskStatusRunning))
	if err != nil {
		return 0, fmt.Errorf("recover stale tasks: %w", err)
	}
	return result.RowsAffected()
}

// scanner is the subset of sql.Row/sql.Rows used by scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*models.Task, error) {
	var t models.Task
	var status, createdAt string
	var phase, finalAnswer, errMsg, completedAt sql.NullString
	if err := s.Scan(&t.ID, &t.Description, &status, &phase, &t.Progress,
		&finalAnswer, &errMsg, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.Phase = phase.String
	t.FinalAnswer = finalAnswer.String
	t.Error = errMsg.String
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	t.CreatedAt = created
	t.CompletedAt = parseNullableTime(completedAt)
	return &t, nil
}
