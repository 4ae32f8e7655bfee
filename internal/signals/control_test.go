package signals

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type controlAction struct {
	taskID string
	answer string
}

func newTestWatcher(t *testing.T) (*ControlWatcher, chan controlAction, chan controlAction) {
	t.Helper()

	cancels := make(chan controlAction, 8)
	answers := make(chan controlAction, 8)

	cw, err := NewControlWatcher(filepath.Join(t.TempDir(), "control"), Handlers{
		Cancel: func(taskID string) {
			cancels <- controlAction{taskID: taskID}
		},
		Answer: func(taskID, answer string) {
			answers <- controlAction{taskID: taskID, answer: answer}
		},
	})
	if err != nil {
		t.Fatalf("NewControlWatcher failed: %v", err)
	}
	t.Cleanup(cw.Close)

	return cw, cancels, answers
}

func waitAction(t *testing.T, ch chan controlAction) controlAction {
	t.Helper()
	select {
	case a := <-ch:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for control action")
	}
	return controlAction{}
}

func TestControlWatcher_CreatesDirectory(t *testing.T) {
	cw, _, _ := newTestWatcher(t)

	info, err := os.Stat(cw.Dir())
	if err != nil || !info.IsDir() {
		t.Fatalf("control dir not created: %v", err)
	}
}

func TestControlWatcher_CancelFile(t *testing.T) {
	cw, cancels, _ := newTestWatcher(t)

	path := filepath.Join(cw.Dir(), "cancel-task-abc123")
	if err := os.WriteFile(path, nil, 0600); err != nil {
		t.Fatalf("writing cancel file: %v", err)
	}

	a := waitAction(t, cancels)
	if a.taskID != "task-abc123" {
		t.Errorf("taskID = %q, want task-abc123", a.taskID)
	}

	// The control file is consumed.
	deadline := time.Now().Add(time.Second)
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("cancel file not removed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestControlWatcher_AnswerFile(t *testing.T) {
	cw, _, answers := newTestWatcher(t)

	path := filepath.Join(cw.Dir(), "answer-task-xyz")
	if err := os.WriteFile(path, []byte("use the staging bucket\n"), 0600); err != nil {
		t.Fatalf("writing answer file: %v", err)
	}

	a := waitAction(t, answers)
	if a.taskID != "task-xyz" {
		t.Errorf("taskID = %q, want task-xyz", a.taskID)
	}
	if a.answer != "use the staging bucket" {
		t.Errorf("answer = %q", a.answer)
	}
}

func TestControlWatcher_ScanPicksUpExistingFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "control")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cancel-task-early"), nil, 0600); err != nil {
		t.Fatal(err)
	}

	cancels := make(chan controlAction, 1)
	cw, err := NewControlWatcher(dir, Handlers{
		Cancel: func(taskID string) { cancels <- controlAction{taskID: taskID} },
	})
	if err != nil {
		t.Fatalf("NewControlWatcher failed: %v", err)
	}
	defer cw.Close()

	a := waitAction(t, cancels)
	if a.taskID != "task-early" {
		t.Errorf("taskID = %q, want task-early", a.taskID)
	}
}

func TestControlWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	cw, cancels, answers := newTestWatcher(t)

	if err := os.WriteFile(filepath.Join(cw.Dir(), "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cw.Dir(), "cancel-"), nil, 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case a := <-cancels:
		t.Errorf("unexpected cancel: %+v", a)
	case a := <-answers:
		t.Errorf("unexpected answer: %+v", a)
	case <-time.After(300 * time.Millisecond):
	}

	// Unrecognized files are left in place.
	if _, err := os.Stat(filepath.Join(cw.Dir(), "notes.txt")); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}

func TestControlWatcher_CloseIsIdempotent(t *testing.T) {
	cw, _, _ := newTestWatcher(t)
	cw.Close()
	cw.Close()
}
