package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conductor-ai/conductor/internal/api"
	"github.com/conductor-ai/conductor/internal/events"
	"github.com/conductor-ai/conductor/internal/tools"
	"github.com/conductor-ai/conductor/pkg/models"
)

// ErrTaskNotFound is returned for operations against an unknown task ID.
var ErrTaskNotFound = errors.New("task not found")

// ErrTaskNotRunning is returned when cancelling a task that has no live loop.
var ErrTaskNotRunning = errors.New("task is not running")

// defaultSystemPrompt drives the supervisor when no prompt is configured.
const defaultSystemPrompt = `You are the supervising agent for a task. Work the task to completion.
Delegate focused sub-problems to sub-agents with the task tool when one fits,
report progress with status_update between major steps, write durable outputs
as artifacts, and ask the human with ask_user only when you are genuinely
blocked on a decision you cannot make yourself. When the work is done, reply
with the final answer as plain text and no tool calls.`

// EventLog durably records events. The orchestrator treats append failures
// as log-and-continue; delivery to live subscribers is never blocked on disk.
type EventLog interface {
	Append(ctx context.Context, ev events.Event) error
}

// TaskStore persists task snapshots across status changes.
type TaskStore interface {
	SaveTask(ctx context.Context, task *models.Task) error
}

// TaskLoader retrieves persisted tasks so a fresh process can adopt
// interrupted tasks created before it started. A nil task with nil error
// means the task does not exist.
type TaskLoader interface {
	GetTask(ctx context.Context, id string) (*models.Task, error)
}

// taskState is everything the orchestrator tracks per task.
type taskState struct {
	task      *models.Task
	agent     *models.Agent
	artifacts *tools.ArtifactMap
	registry  *tools.Registry
	calls     []models.ToolCall
	cancel    context.CancelFunc
	done      chan struct{}
}

// Orchestrator owns task lifecycles: it creates tasks, drives their
// supervisor run loops, routes human answers back into suspended loops, and
// fans every event out through the broadcaster.
type Orchestrator struct {
	model       api.ModelCaller
	broadcaster *events.Broadcaster
	sink        EventSink
	checkpoints CheckpointStore
	interrupts  *InterruptController
	subagents   *SubagentRegistry
	taskStore   TaskStore
	taskLoader  TaskLoader

	systemPrompt  string
	maxIterations int
	statusLimit   int

	mu    sync.RWMutex
	tasks map[string]*taskState
}

// New creates an orchestrator over the given model capability.
func New(model api.ModelCaller, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:         model,
		subagents:     NewSubagentRegistry(),
		systemPrompt:  defaultSystemPrompt,
		maxIterations: defaultMaxIterations,
		statusLimit:   tools.DefaultStatusLimit,
		tasks:         make(map[string]*taskState),
	}
	var cfg options
	for _, opt := range opts {
		opt(&cfg)
	}

	o.broadcaster = cfg.broadcaster
	if o.broadcaster == nil {
		o.broadcaster = events.NewBroadcaster()
	}
	o.sink = &fanoutSink{broadcaster: o.broadcaster, log: cfg.eventLog}

	o.checkpoints = cfg.checkpoints
	if o.checkpoints == nil {
		o.checkpoints = NewMemoryCheckpointStore()
	}
	o.interrupts = NewInterruptController(o.checkpoints, o.sink)

	if cfg.systemPrompt != "" {
		o.systemPrompt = cfg.systemPrompt
	}
	if cfg.maxIterations > 0 {
		o.maxIterations = cfg.maxIterations
	}
	if cfg.statusLimit > 0 {
		o.statusLimit = cfg.statusLimit
	}
	o.taskStore = cfg.taskStore
	o.taskLoader = cfg.taskLoader
	for _, spec := range cfg.subagents {
		if err := o.subagents.Register(spec); err != nil {
			log.Printf("[orchestrator] skipping subagent spec: %v", err)
		}
	}
	return o
}

// Broadcaster returns the event broadcaster, for wiring subscribers.
func (o *Orchestrator) Broadcaster() *events.Broadcaster {
	return o.broadcaster
}

// Subagents returns the delegatable agent type registry.
func (o *Orchestrator) Subagents() *SubagentRegistry {
	return o.subagents
}

// CreateTask registers a new task in the created state with its supervisor
// agent and tool set. The loop does not start until Start or Run.
func (o *Orchestrator) CreateTask(description string) (*models.Task, error) {
	if description == "" {
		return nil, fmt.Errorf("task requires a description")
	}

	task := &models.Task{
		ID:          "task-" + uuid.NewString()[:8],
		Description: description,
		Status:      models.TaskStatusCreated,
		CreatedAt:   time.Now().UTC(),
	}
	agent := &models.Agent{
		ID:        "agent-" + uuid.NewString()[:8],
		TaskID:    task.ID,
		Kind:      models.AgentKindSupervisor,
		Status:    models.AgentStatusIdle,
		CreatedAt: task.CreatedAt,
	}

	artifacts := tools.NewArtifactMap()
	registry := o.newTaskRegistry(artifacts)

	o.mu.Lock()
	o.tasks[task.ID] = &taskState{
		task:      task,
		agent:     agent,
		artifacts: artifacts,
		registry:  registry,
	}
	o.mu.Unlock()

	o.persistTask(task)
	log.Printf("[orchestrator] created %s: %q", task.ID, description)
	return task, nil
}

// newTaskRegistry builds the supervisor tool set for one task.
func (o *Orchestrator) newTaskRegistry(artifacts *tools.ArtifactMap) *tools.Registry {
	registry := tools.NewRegistry()
	registry.MustRegister(tools.NewStatusUpdateTool(o.sink, o.statusLimit, o.setTaskProgress))
	registry.MustRegister(tools.NewArtifactWriteTool(artifacts))
	registry.MustRegister(tools.NewArtifactReadTool(artifacts))
	registry.MustRegister(tools.NewQuestionTool())
	if len(o.subagents.Types()) > 0 {
		loop := NewRunLoop(o.model, o.sink, o.interrupts, o.maxIterations)
		delegator := NewDelegator(loop, o.interrupts, o.subagents, registry)
		registry.MustRegister(delegator.Tool(artifacts))
	}
	return registry
}

// Run drives the task's supervisor loop synchronously until it completes,
// fails, or suspends on a question.
func (o *Orchestrator) Run(ctx context.Context, taskID string) (*models.Task, error) {
	st, err := o.state(taskID)
	if err != nil {
		return nil, err
	}
	if st.task.Status != models.TaskStatusCreated {
		return nil, fmt.Errorf("task %s is %s, expected %s", taskID, st.task.Status, models.TaskStatusCreated)
	}

	conversation := []models.Message{models.UserMessage(st.task.Description)}
	return o.drive(ctx, st, conversation)
}

// Start launches the task's supervisor loop on its own goroutine. The loop's
// context is cancelled by Cancel.
func (o *Orchestrator) Start(taskID string) error {
	st, err := o.state(taskID)
	if err != nil {
		return err
	}
	if st.task.Status != models.TaskStatusCreated {
		return fmt.Errorf("task %s is %s, expected %s", taskID, st.task.Status, models.TaskStatusCreated)
	}
	o.launch(st, []models.Message{models.UserMessage(st.task.Description)})
	return nil
}

// Resume feeds a human answer into the task's suspended supervisor loop and
// restarts it asynchronously. Returns ErrNoPendingInterrupt when the task is
// not interrupted.
func (o *Orchestrator) Resume(ctx context.Context, taskID, answer string) error {
	st, err := o.stateOrAdopt(ctx, taskID)
	if err != nil {
		return err
	}

	cp, err := o.interrupts.Take(ctx, taskID, st.agent.ID)
	if err != nil {
		return err
	}

	conversation := append(cp.Conversation,
		models.ToolResultMessage(cp.PendingToolCallID, tools.QuestionToolName, answer, false))
	// The answer closes the question call's lifecycle.
	o.sink.Publish(events.New(events.TypeToolCallCompleted, taskID, st.agent.ID,
		events.ToolCallPayload{
			ToolCallID: cp.PendingToolCallID,
			ToolName:   tools.QuestionToolName,
			Result:     answer,
		}))
	o.sink.Publish(events.New(events.TypeDialogueUpdate, taskID, st.agent.ID,
		events.DialoguePayload{
			Direction: events.DirectionInput,
			Kind:      events.ContentText,
			Data:      answer,
			Sender:    "human",
		}))
	o.launch(st, conversation)
	return nil
}

// Cancel stops the task's live loop. The loop observes cancellation at its
// next context check and the task is marked failed.
func (o *Orchestrator) Cancel(taskID string) error {
	st, err := o.state(taskID)
	if err != nil {
		return err
	}
	o.mu.Lock()
	cancel := st.cancel
	o.mu.Unlock()
	if cancel == nil {
		return ErrTaskNotRunning
	}
	cancel()
	return nil
}

// Task returns a copy of the task's current snapshot.
func (o *Orchestrator) Task(taskID string) (*models.Task, error) {
	st, err := o.state(taskID)
	if err != nil {
		return nil, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	snapshot := *st.task
	return &snapshot, nil
}

// Tasks returns snapshots of all known tasks, newest first.
func (o *Orchestrator) Tasks() []*models.Task {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*models.Task, 0, len(o.tasks))
	for _, st := range o.tasks {
		snapshot := *st.task
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// PendingQuestion returns the task's unanswered question, or nil when the
// task is not interrupted.
func (o *Orchestrator) PendingQuestion(ctx context.Context, taskID string) (*tools.QuestionArgs, error) {
	st, err := o.stateOrAdopt(ctx, taskID)
	if err != nil {
		return nil, err
	}
	cp, err := o.interrupts.Pending(ctx, taskID, st.agent.ID)
	if err != nil || cp == nil {
		return nil, err
	}
	q := cp.Question
	return &q, nil
}

// ToolCalls returns the task's tool-call audit trail in execution order,
// accumulated across loop passes. Adopted tasks start with an empty trail.
func (o *Orchestrator) ToolCalls(taskID string) ([]models.ToolCall, error) {
	st, err := o.state(taskID)
	if err != nil {
		return nil, err
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]models.ToolCall, len(st.calls))
	copy(out, st.calls)
	return out, nil
}

// Artifacts returns the task's current artifact snapshot.
func (o *Orchestrator) Artifacts(taskID string) ([]tools.Artifact, error) {
	st, err := o.state(taskID)
	if err != nil {
		return nil, err
	}
	return st.artifacts.Snapshot(), nil
}

// Wait blocks until the task's current loop run finishes. No-op when the
// task has no live loop.
func (o *Orchestrator) Wait(taskID string) {
	o.mu.RLock()
	st, ok := o.tasks[taskID]
	var done chan struct{}
	if ok {
		done = st.done
	}
	o.mu.RUnlock()
	if done != nil {
		<-done
	}
}

// launch runs one loop pass on a goroutine with a cancellable context.
func (o *Orchestrator) launch(st *taskState, conversation []models.Message) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.mu.Lock()
	st.cancel = cancel
	st.done = done
	o.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		if _, err := o.drive(ctx, st, conversation); err != nil {
			log.Printf("[orchestrator] task %s: %v", st.task.ID, err)
		}
		o.mu.Lock()
		st.cancel = nil
		o.mu.Unlock()
	}()
}

// drive runs one supervisor loop pass and applies the outcome to the task.
func (o *Orchestrator) drive(ctx context.Context, st *taskState, conversation []models.Message) (*models.Task, error) {
	o.setTaskStatus(st, models.TaskStatusRunning, "")

	loop := NewRunLoop(o.model, o.sink, o.interrupts, o.maxIterations)
	res, err := loop.Run(ctx, RunInput{
		Agent:        st.agent,
		SystemPrompt: o.systemPrompt,
		Conversation: conversation,
		Registry:     st.registry,
	})
	if res != nil && len(res.Calls) > 0 {
		o.mu.Lock()
		st.calls = append(st.calls, res.Calls...)
		o.mu.Unlock()
	}
	if err != nil {
		o.setTaskStatus(st, models.TaskStatusFailed, err.Error())
		return nil, err
	}

	if res.Suspended {
		o.setTaskStatusWithQuestion(st, res.Question.Prompt)
	} else {
		o.mu.Lock()
		st.task.FinalAnswer = res.FinalAnswer
		o.mu.Unlock()
		o.setTaskStatus(st, models.TaskStatusCompleted, "")
	}
	return o.Task(st.task.ID)
}

// setTaskProgress records phase and progress reported through the status
// tool. Advisory only; never changes the task's status.
func (o *Orchestrator) setTaskProgress(taskID, phase string, progress int) {
	st, err := o.state(taskID)
	if err != nil {
		return
	}
	o.mu.Lock()
	if phase != "" {
		st.task.Phase = phase
	}
	if progress > 0 && progress <= 100 {
		st.task.Progress = progress
	}
	snapshot := *st.task
	o.mu.Unlock()
	o.persistTask(&snapshot)
}

// setTaskStatus transitions the task, emits the change event, and persists.
func (o *Orchestrator) setTaskStatus(st *taskState, status models.TaskStatus, errMsg string) {
	o.mu.Lock()
	old := st.task.Status
	st.task.Status = status
	st.task.Error = errMsg
	if status.Terminal() {
		now := time.Now().UTC()
		st.task.CompletedAt = &now
	}
	snapshot := *st.task
	o.mu.Unlock()

	o.sink.Publish(events.New(events.TypeTaskStatusChanged, snapshot.ID, st.agent.ID,
		events.TaskStatusPayload{
			OldStatus:   old,
			NewStatus:   status,
			Phase:       snapshot.Phase,
			Progress:    snapshot.Progress,
			Error:       errMsg,
			FinalAnswer: snapshot.FinalAnswer,
		}))
	o.persistTask(&snapshot)
}

// setTaskStatusWithQuestion marks the task interrupted, recording the prompt
// as the task's current phase for list views.
func (o *Orchestrator) setTaskStatusWithQuestion(st *taskState, prompt string) {
	o.mu.Lock()
	old := st.task.Status
	st.task.Status = models.TaskStatusInterrupted
	st.task.Phase = "awaiting answer: " + prompt
	snapshot := *st.task
	o.mu.Unlock()

	o.sink.Publish(events.New(events.TypeTaskStatusChanged, snapshot.ID, st.agent.ID,
		events.TaskStatusPayload{OldStatus: old, NewStatus: models.TaskStatusInterrupted}))
	o.persistTask(&snapshot)
}

func (o *Orchestrator) persistTask(task *models.Task) {
	if o.taskStore == nil {
		return
	}
	if err := o.taskStore.SaveTask(context.Background(), task); err != nil {
		log.Printf("[orchestrator] persist task %s: %v", task.ID, err)
	}
}

func (o *Orchestrator) state(taskID string) (*taskState, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st, ok := o.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return st, nil
}

// stateOrAdopt resolves the task's in-memory state, adopting it from the
// persistent stores when this process has never seen the task. Adoption
// rebuilds the supervisor agent identity from the task's live checkpoint so
// interrupted tasks survive a restart; artifacts do not.
func (o *Orchestrator) stateOrAdopt(ctx context.Context, taskID string) (*taskState, error) {
	st, err := o.state(taskID)
	if err == nil {
		return st, nil
	}
	if o.taskLoader == nil {
		return nil, err
	}

	task, loadErr := o.taskLoader.GetTask(ctx, taskID)
	if loadErr != nil {
		return nil, fmt.Errorf("load task: %w", loadErr)
	}
	if task == nil {
		return nil, err
	}

	cp, cpErr := o.checkpoints.LoadByTask(ctx, taskID)
	if cpErr != nil {
		return nil, fmt.Errorf("load checkpoint: %w", cpErr)
	}

	agent := &models.Agent{
		ID:        "agent-" + uuid.NewString()[:8],
		TaskID:    taskID,
		Kind:      models.AgentKindSupervisor,
		Status:    models.AgentStatusIdle,
		CreatedAt: task.CreatedAt,
	}
	if cp != nil {
		agent.ID = cp.AgentID
	}

	artifacts := tools.NewArtifactMap()
	adopted := &taskState{
		task:      task,
		agent:     agent,
		artifacts: artifacts,
		registry:  o.newTaskRegistry(artifacts),
	}

	o.mu.Lock()
	if existing, ok := o.tasks[taskID]; ok {
		o.mu.Unlock()
		return existing, nil
	}
	o.tasks[taskID] = adopted
	o.mu.Unlock()

	log.Printf("[orchestrator] adopted %s (%s)", taskID, task.Status)
	return adopted, nil
}

// fanoutSink appends to the durable log (when configured) and broadcasts.
type fanoutSink struct {
	broadcaster *events.Broadcaster
	log         EventLog
}

// Publish implements EventSink.
func (s *fanoutSink) Publish(ev events.Event) {
	if s.log != nil {
		if err := s.log.Append(context.Background(), ev); err != nil {
			log.Printf("[orchestrator] event log append: %v", err)
		}
	}
	s.broadcaster.Publish(ev)
}
