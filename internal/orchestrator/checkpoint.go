// Package orchestrator coordinates agent run loops, human interrupts, and
// task delegation for one process.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/conductor-ai/conductor/internal/tools"
	"github.com/conductor-ai/conductor/pkg/models"
)

// Checkpoint is the minimal durable state needed to resume a suspended run
// loop. At most one live checkpoint exists per (task, agent) pair; it is
// consumed exactly once by a matching resume.
type Checkpoint struct {
	// TaskID is the owning task.
	TaskID string `json:"task_id"`
	// AgentID is the suspended agent.
	AgentID string `json:"agent_id"`
	// PendingToolCallID is the clarifying-question call awaiting an answer.
	PendingToolCallID string `json:"pending_tool_call_id"`
	// Question is the pending question put to the human.
	Question tools.QuestionArgs `json:"question"`
	// SystemPrompt is the suspended agent's system prompt.
	SystemPrompt string `json:"system_prompt"`
	// Conversation is the snapshot to resume from.
	Conversation []models.Message `json:"conversation"`
	// CreatedAt is when the loop suspended. Checkpoints do not expire;
	// callers wanting a timeout poll this age externally.
	CreatedAt time.Time `json:"created_at"`
}

// CheckpointStore durably stores resumable checkpoints. Implementations must
// serialize mutations per (task, agent) key.
type CheckpointStore interface {
	// Save stores a checkpoint.
	Save(ctx context.Context, cp *Checkpoint) error
	// Load returns the live checkpoint for the pair, or nil if none exists.
	Load(ctx context.Context, taskID, agentID string) (*Checkpoint, error)
	// LoadByTask returns the task's live checkpoint regardless of agent, or
	// nil if none exists. Used to re-adopt interrupted tasks after restart.
	LoadByTask(ctx context.Context, taskID string) (*Checkpoint, error)
	// Delete removes the checkpoint for the pair. Deleting a missing
	// checkpoint is not an error.
	Delete(ctx context.Context, taskID, agentID string) error
}

// MemoryCheckpointStore is the in-process CheckpointStore used when no
// durable backend is configured.
type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*Checkpoint
}

// Compile-time verification that MemoryCheckpointStore implements CheckpointStore.
var _ CheckpointStore = (*MemoryCheckpointStore)(nil)

// NewMemoryCheckpointStore creates an empty in-memory store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{checkpoints: make(map[string]*Checkpoint)}
}

func checkpointKey(taskID, agentID string) string {
	return taskID + "/" + agentID
}

// Save stores a checkpoint.
func (s *MemoryCheckpointStore) Save(ctx context.Context, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[checkpointKey(cp.TaskID, cp.AgentID)] = cp
	return nil
}

// Load returns the checkpoint for the pair, or nil.
func (s *MemoryCheckpointStore) Load(ctx context.Context, taskID, agentID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpoints[checkpointKey(taskID, agentID)], nil
}

// LoadByTask returns the task's checkpoint regardless of agent, or nil.
func (s *MemoryCheckpointStore) LoadByTask(ctx context.Context, taskID string) (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cp := range s.checkpoints {
		if cp.TaskID == taskID {
			return cp, nil
		}
	}
	return nil, nil
}

// Delete removes the checkpoint for the pair.
func (s *MemoryCheckpointStore) Delete(ctx context.Context, taskID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, checkpointKey(taskID, agentID))
	return nil
}
