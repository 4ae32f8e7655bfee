package events

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// allTasks is the subscription key for debug subscribers that want every event.
const allTasks = "*"

// defaultBufferSize is the per-connection channel depth.
const defaultBufferSize = 256

// replayTaskCap bounds how many tasks keep a replay ring at once.
const replayTaskCap = 256

// Connection is a live subscriber bound to one task's event stream
// (or to all tasks for debug use). Events arrive on the channel returned
// by Events; the channel is closed when the connection is removed.
type Connection struct {
	id     string
	taskID string
	ch     chan Event
	closed bool
}

// ID returns the connection identifier.
func (c *Connection) ID() string { return c.id }

// TaskID returns the task this connection is bound to, or "*" for all tasks.
func (c *Connection) TaskID() string { return c.taskID }

// Events returns the delivery channel for this connection.
func (c *Connection) Events() <-chan Event { return c.ch }

// Broadcaster fans events out to per-task subscribers. Delivery is
// best-effort and at-most-once per connection: a subscriber whose buffer is
// full is removed rather than allowed to block delivery to others.
type Broadcaster struct {
	// mu serializes all map mutation and fan-out, which also guarantees
	// per-task publish ordering.
	mu      sync.Mutex
	byTask  map[string]map[*Connection]struct{}
	all     map[*Connection]struct{}
	closed  bool
	dropped atomic.Uint64

	bufferSize int
	replay     *lru.Cache[string, *replayRing]
	replaySize int
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithBufferSize sets the per-connection channel depth.
func WithBufferSize(n int) BroadcasterOption {
	return func(b *Broadcaster) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithReplayBuffer keeps the most recent n events per task so late
// subscribers can catch up. Zero disables replay.
func WithReplayBuffer(n int) BroadcasterOption {
	return func(b *Broadcaster) { b.replaySize = n }
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(opts ...BroadcasterOption) *Broadcaster {
	b := &Broadcaster{
		byTask:     make(map[string]map[*Connection]struct{}),
		all:        make(map[*Connection]struct{}),
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.replaySize > 0 {
		cache, err := lru.New[string, *replayRing](replayTaskCap)
		if err == nil {
			b.replay = cache
		}
	}
	return b
}

// Subscribe registers a new connection for the given task.
func (b *Broadcaster) Subscribe(taskID string) *Connection {
	conn := &Connection{
		id:     uuid.NewString(),
		taskID: taskID,
		ch:     make(chan Event, b.bufferSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(conn.ch)
		conn.closed = true
		return conn
	}
	if taskID == allTasks {
		b.all[conn] = struct{}{}
		return conn
	}
	set, ok := b.byTask[taskID]
	if !ok {
		set = make(map[*Connection]struct{})
		b.byTask[taskID] = set
	}
	set[conn] = struct{}{}
	return conn
}

// SubscribeAll registers a debug connection that receives every event.
func (b *Broadcaster) SubscribeAll() *Connection {
	return b.Subscribe(allTasks)
}

// Unsubscribe removes a connection and closes its channel.
func (b *Broadcaster) Unsubscribe(conn *Connection) {
	if conn == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(conn)
}

// Publish fans the event out to every connection subscribed to its task,
// plus all-tasks subscribers. Connections that cannot accept the event are
// removed; remaining connections are unaffected.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	if b.replay != nil && ev.TaskID != "" {
		ring, ok := b.replay.Get(ev.TaskID)
		if !ok {
			ring = newReplayRing(b.replaySize)
			b.replay.Add(ev.TaskID, ring)
		}
		ring.add(ev)
	}

	for conn := range b.byTask[ev.TaskID] {
		b.deliver(conn, ev)
	}
	for conn := range b.all {
		b.deliver(conn, ev)
	}
}

// Replay returns the buffered recent events for a task, oldest first.
// Returns nil when replay is disabled or nothing is buffered.
func (b *Broadcaster) Replay(taskID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.replay == nil {
		return nil
	}
	ring, ok := b.replay.Get(taskID)
	if !ok {
		return nil
	}
	return ring.snapshot()
}

// Dropped returns how many connections have been removed for slow delivery.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// ConnectionCount returns the number of live connections for a task.
func (b *Broadcaster) ConnectionCount(taskID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if taskID == allTasks {
		return len(b.all)
	}
	return len(b.byTask[taskID])
}

// Close removes every connection and rejects further publishes.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for taskID, set := range b.byTask {
		for conn := range set {
			close(conn.ch)
			conn.closed = true
		}
		delete(b.byTask, taskID)
	}
	for conn := range b.all {
		close(conn.ch)
		conn.closed = true
		delete(b.all, conn)
	}
}

// deliver attempts a non-blocking send. A full buffer counts as a delivery
// failure and removes the connection. Caller holds b.mu.
func (b *Broadcaster) deliver(conn *Connection, ev Event) {
	if conn.closed {
		return
	}
	select {
	case conn.ch <- ev:
	default:
		count := b.dropped.Add(1)
		log.Printf("[broadcaster] removing slow connection %s (task=%s, removed total: %d)",
			conn.id, conn.taskID, count)
		b.remove(conn)
	}
}

// remove deletes the connection from the registry and closes its channel.
// Caller holds b.mu.
func (b *Broadcaster) remove(conn *Connection) {
	if conn.closed {
		return
	}
	if conn.taskID == allTasks {
		delete(b.all, conn)
	} else if set, ok := b.byTask[conn.taskID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(b.byTask, conn.taskID)
		}
	}
	close(conn.ch)
	conn.closed = true
}

// replayRing is a fixed-size ring of recent events for one task.
type replayRing struct {
	buf  []Event
	next int
	full bool
}

func newReplayRing(size int) *replayRing {
	return &replayRing{buf: make([]Event, size)}
}

func (r *replayRing) add(ev Event) {
	r.buf[r.next] = ev
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *replayRing) snapshot() []Event {
	if !r.full {
		out := make([]Event, r.next)
		copy(out, r.buf[:r.next])
		return out
	}
	out := make([]Event, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	out = append(out, r.buf[:r.next]...)
	return out
}
