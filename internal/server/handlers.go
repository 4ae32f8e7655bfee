package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"github.com/conductor-ai/conductor/internal/events"
	"github.com/conductor-ai/conductor/internal/orchestrator"
)

// createTaskRequest is the POST /api/tasks body.
type createTaskRequest struct {
	Description string `json:"description" binding:"required"`
	// Start launches the supervisor loop immediately. Defaults to true.
	Start *bool `json:"start,omitempty"`
}

// resumeTaskRequest is the POST /api/tasks/:id/resume body.
type resumeTaskRequest struct {
	Answer string `json:"answer" binding:"required"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := s.orch.CreateTask(req.Description)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Start == nil || *req.Start {
		if err := s.orch.Start(task.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": s.orch.Tasks()})
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.orch.Task(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"task": task}
	if question, err := s.orch.PendingQuestion(c.Request.Context(), task.ID); err == nil && question != nil {
		resp["pending_question"] = question
	}
	if calls, err := s.orch.ToolCalls(task.ID); err == nil && len(calls) > 0 {
		resp["tool_calls"] = calls
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleResumeTask(c *gin.Context) {
	var req resumeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.orch.Resume(c.Request.Context(), c.Param("id"), req.Answer)
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "resumed"})
	case errors.Is(err, orchestrator.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orchestrator.ErrNoPendingInterrupt):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleCancelTask(c *gin.Context) {
	err := s.orch.Cancel(c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
	case errors.Is(err, orchestrator.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orchestrator.ErrTaskNotRunning):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *Server) handleTaskArtifacts(c *gin.Context) {
	artifacts, err := s.orch.Artifacts(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"artifacts": artifacts})
}

// handleTaskEvents streams one task's events over SSE. ?history=N replays up
// to N recorded events before live delivery when an event log is wired.
func (s *Server) handleTaskEvents(c *gin.Context) {
	taskID := c.Param("id")
	if _, err := s.orch.Task(taskID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	var backlog []events.Event
	if n, err := strconv.Atoi(c.DefaultQuery("history", "0")); err == nil && n > 0 {
		switch {
		case s.history != nil:
			backlog, _ = s.history.Recent(c.Request.Context(), taskID, n)
		default:
			// Without a durable log, fall back to the broadcaster's
			// in-memory replay buffer when one is configured.
			backlog = s.orch.Broadcaster().Replay(taskID)
			if len(backlog) > n {
				backlog = backlog[len(backlog)-n:]
			}
		}
	}

	conn := s.orch.Broadcaster().Subscribe(taskID)
	defer s.orch.Broadcaster().Unsubscribe(conn)
	s.streamEvents(c, conn, backlog)
}

// handleAllEvents streams every task's events over SSE.
func (s *Server) handleAllEvents(c *gin.Context) {
	conn := s.orch.Broadcaster().SubscribeAll()
	defer s.orch.Broadcaster().Unsubscribe(conn)
	s.streamEvents(c, conn, nil)
}

// streamEvents writes the backlog then live events until the client goes
// away or the connection is removed.
func (s *Server) streamEvents(c *gin.Context, conn *events.Connection, backlog []events.Event) {
	c.Writer.Header().Set("Content-Type", sse.ContentType)
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	for _, ev := range backlog {
		if err := writeEvent(c.Writer, ev); err != nil {
			return
		}
	}
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-conn.Events():
			if !ok {
				return false
			}
			return writeEvent(w, ev) == nil
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// writeEvent encodes one event as an SSE frame named after its type.
func writeEvent(w io.Writer, ev events.Event) error {
	return sse.Encode(w, sse.Event{
		Event: string(ev.Type),
		Data:  ev,
	})
}
