package events

import (
	"fmt"
	"testing"
	"time"

	"github.com/conductor-ai/conductor/pkg/models"
)

func statusEvent(taskID string, n int) Event {
	return New(TypeDialogueUpdate, taskID, "agent-1", DialoguePayload{
		Direction: DirectionOutput,
		Kind:      ContentText,
		Data:      fmt.Sprintf("update %d", n),
	})
}

func recv(t *testing.T, conn *Connection) Event {
	t.Helper()
	select {
	case ev, ok := <-conn.Events():
		if !ok {
			t.Fatal("connection closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestPublish_TaskFiltering(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	connA := b.Subscribe("task-a")
	connB := b.Subscribe("task-b")

	b.Publish(statusEvent("task-a", 1))

	ev := recv(t, connA)
	if ev.TaskID != "task-a" {
		t.Errorf("TaskID = %s", ev.TaskID)
	}

	select {
	case leaked := <-connB.Events():
		t.Errorf("task-b connection received %v", leaked)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_AllTasksSubscriber(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	all := b.SubscribeAll()
	b.Publish(statusEvent("task-a", 1))
	b.Publish(statusEvent("task-b", 2))

	first := recv(t, all)
	second := recv(t, all)
	if first.TaskID != "task-a" || second.TaskID != "task-b" {
		t.Errorf("got %s then %s", first.TaskID, second.TaskID)
	}
}

func TestPublish_OrderPreservedPerTask(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	conn := b.Subscribe("task-1")
	const n = 100
	for i := 0; i < n; i++ {
		b.Publish(statusEvent("task-1", i))
	}

	for i := 0; i < n; i++ {
		ev := recv(t, conn)
		payload := ev.Payload.(DialoguePayload)
		want := fmt.Sprintf("update %d", i)
		if payload.Data != want {
			t.Fatalf("event %d = %q, want %q", i, payload.Data, want)
		}
	}
}

func TestSlowConnectionRemoved(t *testing.T) {
	b := NewBroadcaster(WithBufferSize(2))
	defer b.Close()

	slow := b.Subscribe("task-1")
	healthy := b.Subscribe("task-1")

	// Fill the slow connection's buffer without draining, then overflow it.
	for i := 0; i < 3; i++ {
		b.Publish(statusEvent("task-1", i))
		recv(t, healthy)
	}

	if b.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", b.Dropped())
	}
	if b.ConnectionCount("task-1") != 1 {
		t.Errorf("ConnectionCount = %d, want 1", b.ConnectionCount("task-1"))
	}

	// The removed connection's channel drains its buffer then closes.
	drained := 0
	for range slow.Events() {
		drained++
	}
	if drained != 2 {
		t.Errorf("drained = %d, want 2", drained)
	}

	// The healthy connection keeps receiving.
	b.Publish(statusEvent("task-1", 99))
	ev := recv(t, healthy)
	if ev.Payload.(DialoguePayload).Data != "update 99" {
		t.Error("healthy connection disrupted by slow peer removal")
	}
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	conn := b.Subscribe("task-1")
	b.Unsubscribe(conn)

	if _, ok := <-conn.Events(); ok {
		t.Error("channel not closed after unsubscribe")
	}

	// Publishing after unsubscribe must not panic.
	b.Publish(statusEvent("task-1", 1))

	// Double unsubscribe is harmless.
	b.Unsubscribe(conn)
}

func TestClose_RejectsFurtherActivity(t *testing.T) {
	b := NewBroadcaster()
	conn := b.Subscribe("task-1")

	b.Close()
	if _, ok := <-conn.Events(); ok {
		t.Error("channel not closed after Close")
	}

	// Subscribing after close yields a closed connection.
	late := b.Subscribe("task-1")
	if _, ok := <-late.Events(); ok {
		t.Error("late subscription channel not closed")
	}

	b.Publish(statusEvent("task-1", 1))
	b.Close()
}

func TestReplayBuffer(t *testing.T) {
	b := NewBroadcaster(WithReplayBuffer(3))
	defer b.Close()

	for i := 0; i < 5; i++ {
		b.Publish(statusEvent("task-1", i))
	}

	replay := b.Replay("task-1")
	if len(replay) != 3 {
		t.Fatalf("replay length = %d, want 3", len(replay))
	}
	for i, ev := range replay {
		want := fmt.Sprintf("update %d", i+2)
		if ev.Payload.(DialoguePayload).Data != want {
			t.Errorf("replay[%d] = %q, want %q", i, ev.Payload.(DialoguePayload).Data, want)
		}
	}

	if got := b.Replay("task-unknown"); got != nil {
		t.Errorf("replay for unknown task = %v, want nil", got)
	}
}

func TestReplayDisabledByDefault(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	b.Publish(statusEvent("task-1", 1))
	if got := b.Replay("task-1"); got != nil {
		t.Errorf("replay = %v, want nil when disabled", got)
	}
}

func TestStatusChangeEventPayloads(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()

	conn := b.Subscribe("task-1")
	b.Publish(New(TypeTaskStatusChanged, "task-1", "agent-1", TaskStatusPayload{
		OldStatus: models.TaskStatusRunning,
		NewStatus: models.TaskStatusInterrupted,
	}))

	ev := recv(t, conn)
	payload, ok := ev.Payload.(TaskStatusPayload)
	if !ok {
		t.Fatalf("payload type = %T", ev.Payload)
	}
	if payload.NewStatus != models.TaskStatusInterrupted {
		t.Errorf("NewStatus = %s", payload.NewStatus)
	}
	if ev.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}
