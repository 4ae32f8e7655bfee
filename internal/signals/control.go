// Package signals provides file-based task control via a watched directory.
// Dropping a file named cancel-<task-id> cancels that task; a file named
// answer-<task-id> resumes an interrupted task with the file's contents as
// the human answer. This lets scripts and other processes steer tasks
// without talking to the HTTP API.
package signals

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	cancelPrefix = "cancel-"
	answerPrefix = "answer-"
)

// pollInterval is the fallback scan cadence when no fsnotify watcher is
// available.
const pollInterval = 500 * time.Millisecond

// Handlers receives control actions decoded from the watched directory.
type Handlers struct {
	// Cancel is invoked with the task ID from a cancel-<id> file.
	Cancel func(taskID string)
	// Answer is invoked with the task ID and the file contents from an
	// answer-<id> file.
	Answer func(taskID, answer string)
}

// ControlWatcher watches a directory for task control files.
type ControlWatcher struct {
	dir      string
	handlers Handlers

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// DefaultControlDir returns the control directory under the user's runtime
// or data directory.
func DefaultControlDir() string {
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		return filepath.Join(runtime, "conductor", "control")
	}
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "conductor", "control")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".conductor", "control")
	}
	return filepath.Join(home, ".local", "share", "conductor", "control")
}

// NewControlWatcher creates the control directory and starts watching it.
// When fsnotify is unavailable the watcher degrades to polling.
func NewControlWatcher(dir string, handlers Handlers) (*ControlWatcher, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	cw := &ControlWatcher{
		dir:      dir,
		handlers: handlers,
		done:     make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			watcher = nil
		}
	} else {
		watcher = nil
	}
	cw.watcher = watcher

	if cw.watcher != nil {
		go cw.watch()
	} else {
		log.Printf("[signals] fsnotify unavailable, polling %s", dir)
		go cw.poll()
	}

	// Pick up files dropped before the watcher started.
	cw.Scan()

	return cw, nil
}

// Dir returns the watched directory.
func (cw *ControlWatcher) Dir() string {
	return cw.dir
}

// Scan processes any control files currently in the directory.
func (cw *ControlWatcher) Scan() {
	entries, err := os.ReadDir(cw.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		cw.handleFile(filepath.Join(cw.dir, entry.Name()))
	}
}

// Close stops the watcher.
func (cw *ControlWatcher) Close() {
	cw.once.Do(func() {
		close(cw.done)
		if cw.watcher != nil {
			cw.watcher.Close()
		}
	})
}

// watch consumes fsnotify events until closed.
func (cw *ControlWatcher) watch() {
	for {
		select {
		case <-cw.done:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0 {
				cw.handleFile(event.Name)
			}
		case <-cw.watcher.Errors:
			// Keep watching. Scan covers anything missed.
		}
	}
}

// poll rescans the directory on a timer when fsnotify is unavailable.
func (cw *ControlWatcher) poll() {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cw.done:
			return
		case <-ticker.C:
			cw.Scan()
		}
	}
}

// handleFile decodes one control file, removes it, and fires its handler.
// The handler fires only when this process removed the file, so duplicate
// Create and Write events cannot double-fire. Unrecognized names are left
// alone.
func (cw *ControlWatcher) handleFile(path string) {
	base := filepath.Base(path)

	var taskID string
	var isAnswer bool
	switch {
	case strings.HasPrefix(base, cancelPrefix):
		taskID = strings.TrimPrefix(base, cancelPrefix)
	case strings.HasPrefix(base, answerPrefix):
		taskID = strings.TrimPrefix(base, answerPrefix)
		isAnswer = true
	default:
		return
	}
	if taskID == "" {
		return
	}

	if isAnswer {
		content, err := os.ReadFile(path)
		if err != nil {
			return
		}
		if os.Remove(path) != nil {
			return
		}
		if cw.handlers.Answer != nil {
			cw.handlers.Answer(taskID, strings.TrimSpace(string(content)))
		}
		return
	}

	if os.Remove(path) != nil {
		return
	}
	if cw.handlers.Cancel != nil {
		cw.handlers.Cancel(taskID)
	}
}
