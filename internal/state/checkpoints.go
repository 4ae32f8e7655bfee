package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/conductor-ai/conductor/internal/orchestrator"
)

// CheckpointStore is the SQLite-backed checkpoint backend. Checkpoints are
// stored as one JSON payload per (task, agent) pair so resumable state
// survives process restarts.
type CheckpointStore struct {
	db *DB
}

// Compile-time verification of the orchestrator contracts this package
// implements.
var (
	_ orchestrator.CheckpointStore = (*CheckpointStore)(nil)
	_ orchestrator.TaskStore       = (*DB)(nil)
	_ orchestrator.TaskLoader      = (*DB)(nil)
)

// NewCheckpointStore creates a checkpoint store over an open database.
func NewCheckpointStore(db *DB) *CheckpointStore {
	return &CheckpointStore{db: db}
}

// Save stores a checkpoint, replacing any previous one for the pair.
func (s *CheckpointStore) Save(ctx context.Context, cp *orchestrator.Checkpoint) error {
	payload, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO checkpoints (task_id, agent_id, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(task_id, agent_id) DO UPDATE SET
			payload = excluded.payload,
			created_at = excluded.created_at
	`, cp.TaskID, cp.AgentID, string(payload), formatTime(cp.CreatedAt))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Load returns the checkpoint for the pair, or nil if none exists.
func (s *CheckpointStore) Load(ctx context.Context, taskID, agentID string) (*orchestrator.Checkpoint, error) {
	var payload string
	row := s.db.QueryRow(`
		SELECT payload FROM checkpoints WHERE task_id = ? AND agent_id = ?
	`, taskID, agentID)
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var cp orchestrator.Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// LoadByTask returns the task's checkpoint regardless of agent, or nil if
// none exists. At most one checkpoint is live per task in practice, since
// sub-agent checkpoints never outlive their delegation call.
func (s *CheckpointStore) LoadByTask(ctx context.Context, taskID string) (*orchestrator.Checkpoint, error) {
	var payload string
	row := s.db.QueryRow(`
		SELECT payload FROM checkpoints WHERE task_id = ? ORDER BY created_at LIMIT 1
	`, taskID)
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var cp orchestrator.Checkpoint
	if err := json.Unmarshal([]byte(payload), &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Delete removes the checkpoint for the pair. Deleting a missing checkpoint
// is not an error.
func (s *CheckpointStore) Delete(ctx context.Context, taskID, agentID string) error {
	_, err := s.db.Exec(`
		DELETE FROM checkpoints WHERE task_id = ? AND agent_id = ?
	`, taskID, agentID)
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
