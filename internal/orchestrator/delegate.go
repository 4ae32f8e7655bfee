package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-ai/conductor/internal/tools"
	"github.com/conductor-ai/conductor/pkg/models"
)

// DelegationToolName is the tool the model calls to spawn a sub-agent.
const DelegationToolName = "task"

// defaultSubagentIterations bounds a delegated loop when the spec does not
// set its own cap.
const defaultSubagentIterations = 25

// SubagentSpec declares one delegatable agent type.
type SubagentSpec struct {
	// Type is the name the model uses to select this spec.
	Type string `json:"type" yaml:"type"`
	// Description tells the delegating model what this agent is for.
	Description string `json:"description" yaml:"description"`
	// SystemPrompt is the sub-agent's system instructions.
	SystemPrompt string `json:"system_prompt" yaml:"system_prompt"`
	// Tools names the base-registry tools granted to the sub-agent. The
	// delegation tool itself is never granted, so delegation cannot recurse.
	Tools []string `json:"tools" yaml:"tools"`
	// AllowQuestions grants the clarifying-question tool. A sub-agent
	// question surfaces to the parent as a failed delegation, not a
	// suspended task.
	AllowQuestions bool `json:"allow_questions" yaml:"allow_questions"`
	// MaxIterations caps the sub-agent's model calls when > 0.
	MaxIterations int `json:"max_iterations" yaml:"max_iterations"`
}

// SubagentRegistry holds the delegatable agent types configured for a
// process. Registration happens at startup; lookups are concurrent.
type SubagentRegistry struct {
	mu    sync.RWMutex
	specs map[string]SubagentSpec
	order []string
}

// NewSubagentRegistry creates an empty registry.
func NewSubagentRegistry() *SubagentRegistry {
	return &SubagentRegistry{specs: make(map[string]SubagentSpec)}
}

// Register adds a spec. Registering a duplicate type is an error.
func (r *SubagentRegistry) Register(spec SubagentSpec) error {
	if spec.Type == "" {
		return fmt.Errorf("subagent spec must have a type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.Type]; exists {
		return fmt.Errorf("subagent type %q already registered", spec.Type)
	}
	r.specs[spec.Type] = spec
	r.order = append(r.order, spec.Type)
	return nil
}

// Get returns the spec for a type.
func (r *SubagentRegistry) Get(agentType string) (SubagentSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.specs[agentType]
	return spec, ok
}

// Types returns the registered type names in registration order.
func (r *SubagentRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// describe renders the catalog for the delegation tool's description.
func (r *SubagentRegistry) describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var b strings.Builder
	for _, name := range r.order {
		spec := r.specs[name]
		fmt.Fprintf(&b, "\n- %s: %s", spec.Type, spec.Description)
	}
	return b.String()
}

// delegationArgs is the argument payload of the delegation tool.
type delegationArgs struct {
	// AgentType selects the sub-agent spec.
	AgentType string `json:"subagent_type"`
	// Description is the work handed to the sub-agent.
	Description string `json:"description"`
	// Context is optional extra background prepended to the description.
	Context string `json:"context,omitempty"`
}

// Delegator runs sub-agent loops on behalf of the delegation tool.
type Delegator struct {
	loop       *RunLoop
	interrupts *InterruptController
	subagents  *SubagentRegistry
	base       *tools.Registry
}

// NewDelegator creates a delegator over the given base tool registry. Each
// delegation builds the sub-agent's tool set as a subset of base per its
// spec.
func NewDelegator(loop *RunLoop, interrupts *InterruptController, subagents *SubagentRegistry, base *tools.Registry) *Delegator {
	return &Delegator{
		loop:       loop,
		interrupts: interrupts,
		subagents:  subagents,
		base:       base,
	}
}

// Tool builds the delegation tool bound to the parent agent's artifact map.
// Artifacts are copied in at spawn and merged back only when the sub-agent
// completes, so a failed delegation never leaks partial writes.
func (d *Delegator) Tool(parentArtifacts *tools.ArtifactMap) *tools.Tool {
	return &tools.Tool{
		Name: DelegationToolName,
		Description: "Delegate a focused piece of work to a specialized sub-agent. " +
			"The sub-agent works in isolation and returns a final report. Available agent types:" +
			d.subagents.describe(),
		Schema: tools.ObjectSchema(map[string]tools.Property{
			"subagent_type": {Type: "string", Description: "Which sub-agent type to spawn.", Enum: d.subagents.Types()},
			"description":   {Type: "string", Description: "Complete, self-contained description of the work."},
			"context":       {Type: "string", Description: "Optional extra background for the sub-agent."},
		}, "subagent_type", "description"),
		Effect: tools.EffectDelegating,
		Handler: func(ctx context.Context, call tools.Call) tools.Result {
			return d.run(ctx, call, parentArtifacts)
		},
	}
}

// run executes one delegation end to end.
func (d *Delegator) run(ctx context.Context, call tools.Call, parentArtifacts *tools.ArtifactMap) tools.Result {
	var args delegationArgs
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return tools.Errorf("bad_arguments", "invalid delegation arguments: %v", err)
	}
	if args.Description == "" {
		return tools.Errorf("bad_arguments", "delegation requires a description")
	}

	spec, ok := d.subagents.Get(args.AgentType)
	if !ok {
		return tools.Errorf("unknown_subagent",
			"unknown agent type %q; available types: %v", args.AgentType, d.subagents.Types())
	}

	sub := &models.Agent{
		ID:        "sub-" + uuid.NewString()[:8],
		TaskID:    call.TaskID,
		Kind:      models.AgentKindSubagent,
		Status:    models.AgentStatusIdle,
		CreatedAt: time.Now().UTC(),
	}

	subArtifacts := tools.NewArtifactMap()
	subArtifacts.Merge(parentArtifacts)
	registry := d.buildRegistry(spec, subArtifacts)

	prompt := args.Description
	if args.Context != "" {
		prompt = args.Context + "\n\n" + args.Description
	}

	maxIter := spec.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultSubagentIterations
	}
	loop := NewRunLoop(d.loop.model, d.loop.sink, d.interrupts, maxIter)

	log.Printf("[delegate] task=%s parent=%s spawning %s as %s", call.TaskID, call.AgentID, spec.Type, sub.ID)
	res, err := loop.Run(ctx, RunInput{
		Agent:        sub,
		SystemPrompt: spec.SystemPrompt,
		Conversation: []models.Message{models.UserMessage(prompt)},
		Registry:     registry,
	})
	if err != nil {
		return tools.Errorf("subagent_failed", "sub-agent %s failed: %v", spec.Type, err)
	}

	if res.Suspended {
		// A suspended sub-agent cannot outlive its delegation call. Consume
		// the checkpoint and surface the question to the parent instead.
		if _, takeErr := d.interrupts.Take(ctx, sub.TaskID, sub.ID); takeErr != nil {
			log.Printf("[delegate] task=%s discarding orphan checkpoint for %s: %v", sub.TaskID, sub.ID, takeErr)
		}
		return tools.Errorf("subagent_needs_input",
			"sub-agent %s requested clarification instead of finishing: %q; answer it yourself or rephrase the delegation",
			spec.Type, res.Question.Prompt)
	}

	parentArtifacts.Merge(subArtifacts)
	return tools.Result{Content: res.FinalAnswer}
}

// buildRegistry assembles the sub-agent's tool set: the spec's granted base
// tools, artifact tools rebound to the sub-agent's own map, and the question
// tool when allowed. The delegation tool is excluded unconditionally.
func (d *Delegator) buildRegistry(spec SubagentSpec, artifacts *tools.ArtifactMap) *tools.Registry {
	registry := tools.NewRegistry()
	for _, name := range spec.Tools {
		switch name {
		case DelegationToolName:
			continue
		case tools.ArtifactWriteToolName:
			registry.MustRegister(tools.NewArtifactWriteTool(artifacts))
		case tools.ArtifactReadToolName:
			registry.MustRegister(tools.NewArtifactReadTool(artifacts))
		case tools.QuestionToolName:
			// Granted via AllowQuestions, not the tool list.
			continue
		default:
			if t, ok := d.base.Get(name); ok {
				registry.MustRegister(t)
			} else {
				log.Printf("[delegate] spec %s names unknown tool %q, skipping", spec.Type, name)
			}
		}
	}
	if spec.AllowQuestions {
		registry.MustRegister(tools.NewQuestionTool())
	}
	return registry
}
