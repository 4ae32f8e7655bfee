package orchestrator

import "github.com/conductor-ai/conductor/internal/events"

type options struct {
	broadcaster   *events.Broadcaster
	checkpoints   CheckpointStore
	eventLog      EventLog
	taskStore     TaskStore
	taskLoader    TaskLoader
	subagents     []SubagentSpec
	systemPrompt  string
	maxIterations int
	statusLimit   int
}

// Option configures an Orchestrator.
type Option func(*options)

// WithBroadcaster supplies a preconfigured broadcaster instead of the
// default one.
func WithBroadcaster(b *events.Broadcaster) Option {
	return func(o *options) { o.broadcaster = b }
}

// WithCheckpointStore supplies a durable checkpoint backend. Defaults to the
// in-memory store.
func WithCheckpointStore(s CheckpointStore) Option {
	return func(o *options) { o.checkpoints = s }
}

// WithEventLog enables durable event recording alongside live fan-out.
func WithEventLog(l EventLog) Option {
	return func(o *options) { o.eventLog = l }
}

// WithTaskStore enables task snapshot persistence across status changes.
func WithTaskStore(s TaskStore) Option {
	return func(o *options) { o.taskStore = s }
}

// WithTaskLoader enables adopting persisted tasks unknown to this process,
// so interrupted tasks can be resumed after a restart.
func WithTaskLoader(l TaskLoader) Option {
	return func(o *options) { o.taskLoader = l }
}

// WithSubagents registers delegatable agent types. The delegation tool is
// only offered to supervisors when at least one spec is registered.
func WithSubagents(specs ...SubagentSpec) Option {
	return func(o *options) { o.subagents = append(o.subagents, specs...) }
}

// WithSystemPrompt overrides the default supervisor system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(o *options) { o.systemPrompt = prompt }
}

// WithMaxIterations caps each loop's model calls.
func WithMaxIterations(n int) Option {
	return func(o *options) { o.maxIterations = n }
}

// WithStatusUpdateLimit overrides the consecutive status_update cap.
func WithStatusUpdateLimit(n int) Option {
	return func(o *options) { o.statusLimit = n }
}
