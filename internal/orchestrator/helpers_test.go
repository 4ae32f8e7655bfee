package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/conductor-ai/conductor/internal/api"
	"github.com/conductor-ai/conductor/internal/events"
	"github.com/conductor-ai/conductor/internal/tools"
	"github.com/conductor-ai/conductor/pkg/models"
)

// scriptedModel returns canned responses in order, then a terminal answer.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*api.GenerateResponse
	errs      []error
	calls     int
	// lastConversation captures the conversation of the most recent call.
	lastConversation []models.Message
}

func (m *scriptedModel) Generate(ctx context.Context, system string, conversation []models.Message, toolset []*tools.Tool) (*api.GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastConversation = models.CloneConversation(conversation)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(m.responses) == 0 {
		return &api.GenerateResponse{Content: "done"}, nil
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return next, nil
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// recordingSink captures published events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Publish(ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) all() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) ofType(t events.Type) []events.Event {
	var out []events.Event
	for _, ev := range s.all() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func testAgent(taskID string) *models.Agent {
	return &models.Agent{
		ID:        "agent-test",
		TaskID:    taskID,
		Kind:      models.AgentKindSupervisor,
		Status:    models.AgentStatusIdle,
		CreatedAt: time.Now().UTC(),
	}
}

func statusCall(id, message string) api.ToolCallRequest {
	args, _ := json.Marshal(map[string]string{"message": message})
	return api.ToolCallRequest{ID: id, Name: tools.StatusToolName, Arguments: args}
}

func questionCall(id, prompt string) api.ToolCallRequest {
	args, _ := json.Marshal(tools.QuestionArgs{Prompt: prompt})
	return api.ToolCallRequest{ID: id, Name: tools.QuestionToolName, Arguments: args}
}

// echoTool returns its "text" argument, optionally after a delay.
func echoTool(name string, independent bool, delay time.Duration) *tools.Tool {
	return &tools.Tool{
		Name:        name,
		Description: "echoes its input",
		Schema: tools.ObjectSchema(map[string]tools.Property{
			"text": {Type: "string"},
		}, "text"),
		Effect:      tools.EffectPure,
		Independent: independent,
		Handler: func(ctx context.Context, call tools.Call) tools.Result {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return tools.Errorf("cancelled", "%v", ctx.Err())
				}
			}
			var args struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(call.Arguments, &args); err != nil {
				return tools.Errorf("invalid_arguments", "%v", err)
			}
			return tools.Result{Content: args.Text}
		},
	}
}

func echoCall(id, tool, text string) api.ToolCallRequest {
	args, _ := json.Marshal(map[string]string{"text": text})
	return api.ToolCallRequest{ID: id, Name: tool, Arguments: args}
}
