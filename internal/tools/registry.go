// Package tools provides the tool registry and the builtin tools the
// orchestrator exposes to agents.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// SideEffect classifies what a tool does when executed.
type SideEffect string

const (
	// EffectPure produces a response without mutating orchestration state.
	EffectPure SideEffect = "pure"
	// EffectMutating changes state owned by the task (artifacts, files).
	EffectMutating SideEffect = "mutating"
	// EffectDelegating runs a nested agent loop.
	EffectDelegating SideEffect = "delegating"
)

// Property describes one schema property.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Schema is the JSON-schema-shaped argument contract for a tool.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ObjectSchema builds an object schema from properties and required names.
func ObjectSchema(props map[string]Property, required ...string) Schema {
	return Schema{Type: "object", Properties: props, Required: required}
}

// Call carries one tool invocation into a handler.
type Call struct {
	// ID is the model-assigned tool call identifier.
	ID string
	// TaskID is the owning task.
	TaskID string
	// AgentID is the calling agent.
	AgentID string
	// Arguments is the raw JSON argument payload.
	Arguments json.RawMessage
}

// Result is a tool outcome fed back to the model. Errors are structured
// results, not Go errors, so the model can react and retry.
type Result struct {
	// Content is the text returned to the model.
	Content string
	// IsError marks the result as an error the model should correct.
	IsError bool
	// Code optionally names a machine-readable error class
	// (rate_limited, unknown_tool, unknown_subagent).
	Code string
}

// Errorf builds an error result.
func Errorf(code, format string, args ...any) Result {
	return Result{Content: fmt.Sprintf(format, args...), IsError: true, Code: code}
}

// Handler executes a tool call.
type Handler func(ctx context.Context, call Call) Result

// Tool is one registered callable.
type Tool struct {
	// Name is the unique tool name presented to the model.
	Name string
	// Description tells the model when to use the tool.
	Description string
	// Schema is the argument contract.
	Schema Schema
	// Effect classifies the tool's side effects.
	Effect SideEffect
	// Independent marks the tool safe to run concurrently with other
	// independent tools in the same batch.
	Independent bool
	// ConsecutiveLimit caps back-to-back invocations per agent when > 0.
	ConsecutiveLimit int
	// Handler executes the call.
	Handler Handler
}

// streak tracks the most recent limited tool an agent called and how many
// times in a row.
type streak struct {
	tool  string
	count int
}

// Registry maps tool names to their contracts. Dispatch enforces the
// per-agent consecutive-call limit for tools that declare one.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*Tool
	order   []string
	streaks map[string]streak
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]*Tool),
		streaks: make(map[string]streak),
	}
}

// Register adds a tool. Registering a duplicate name is an error.
func (r *Registry) Register(t *Tool) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("tool must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// MustRegister adds a tool and panics on conflict. For wiring at startup.
func (r *Registry) MustRegister(t *Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns all tools in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Subset returns a new registry containing only the named tools, with fresh
// rate-limit state. Unknown names are skipped.
func (r *Registry) Subset(names ...string) *Registry {
	sub := NewRegistry()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			sub.tools[name] = t
			sub.order = append(sub.order, name)
		}
	}
	return sub
}

// Without returns a new registry excluding the named tools.
func (r *Registry) Without(names ...string) *Registry {
	excluded := make(map[string]bool, len(names))
	for _, name := range names {
		excluded[name] = true
	}
	sub := NewRegistry()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if excluded[name] {
			continue
		}
		sub.tools[name] = r.tools[name]
		sub.order = append(sub.order, name)
	}
	return sub
}

// Dispatch executes a tool call. Unknown tools and exceeded consecutive-call
// limits yield structured error results rather than Go errors; a panicking
// handler is converted to a failed result as well.
func (r *Registry) Dispatch(ctx context.Context, name string, call Call) (result Result) {
	tool, ok := r.Get(name)
	if !ok {
		return Errorf("unknown_tool", "unknown tool %q; available tools: %v", name, r.Names())
	}

	if !r.noteInvocation(call.AgentID, tool) {
		return Errorf("rate_limited",
			"consecutive %s limit (%d) exceeded; take a different action before sending another update",
			tool.Name, tool.ConsecutiveLimit)
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[tools] handler panic in %s: %v", tool.Name, rec)
			result = Errorf("handler_panic", "tool %s crashed: %v", tool.Name, rec)
		}
	}()

	return tool.Handler(ctx, call)
}

// noteInvocation records the call against the agent's streak and reports
// whether the call is allowed. Any call to an unlimited tool resets the
// agent's streak.
func (r *Registry) noteInvocation(agentID string, tool *Tool) bool {
	if agentID == "" {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if tool.ConsecutiveLimit <= 0 {
		delete(r.streaks, agentID)
		return true
	}

	s := r.streaks[agentID]
	if s.tool == tool.Name {
		s.count++
	} else {
		s = streak{tool: tool.Name, count: 1}
	}
	r.streaks[agentID] = s
	return s.count <= tool.ConsecutiveLimit
}

// ResetStreak clears an agent's consecutive-call streak. For callers that
// handle a tool call outside Dispatch, so the call still counts as a
// different action.
func (r *Registry) ResetStreak(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.streaks, agentID)
}

// Streak returns the current consecutive-call count an agent has against
// the named tool. Zero when the agent last called something else.
func (r *Registry) Streak(agentID, toolName string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.streaks[agentID]
	if s.tool != toolName {
		return 0
	}
	return s.count
}
