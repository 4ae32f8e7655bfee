package models

import "time"

// AgentStatus represents the current state of an agent.
type AgentStatus string

const (
	// AgentStatusIdle indicates the agent is not doing anything.
	AgentStatusIdle AgentStatus = "idle"
	// AgentStatusActive indicates the agent's run loop has started.
	AgentStatusActive AgentStatus = "active"
	// AgentStatusProcessing indicates the agent is dispatching tool calls.
	AgentStatusProcessing AgentStatus = "processing"
	// AgentStatusTyping indicates the agent is producing answer content.
	AgentStatusTyping AgentStatus = "typing"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusIdle, AgentStatusActive, AgentStatusProcessing, AgentStatusTyping:
		return true
	default:
		return false
	}
}

// AgentKind distinguishes the roles an agent can play within a task.
type AgentKind string

const (
	// AgentKindSupervisor is the top-level agent that owns the task.
	AgentKindSupervisor AgentKind = "supervisor"
	// AgentKindWorker is an agent running a fixed role for the task.
	AgentKindWorker AgentKind = "worker"
	// AgentKindSubagent is a lazily created delegation target.
	AgentKindSubagent AgentKind = "subagent"
)

// Agent represents one logical agent role attached to a task.
// Sub-agent instances are created when a delegation tool call starts
// and discarded when their run loop ends.
type Agent struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id"`
	// TaskID is the ID of the task this agent belongs to.
	TaskID string `json:"task_id"`
	// Kind is the role this agent plays.
	Kind AgentKind `json:"kind"`
	// Status is the current state of the agent.
	Status AgentStatus `json:"status"`
	// CreatedAt is when the agent was instantiated.
	CreatedAt time.Time `json:"created_at"`
}
