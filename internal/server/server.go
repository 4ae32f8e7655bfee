// Package server exposes the orchestrator over HTTP: task CRUD, the
// interrupt/resume protocol, and SSE event streams.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/conductor-ai/conductor/internal/events"
	"github.com/conductor-ai/conductor/internal/orchestrator"
)

// EventHistory serves recorded events to late subscribers. Satisfied by the
// SQLite event log; optional.
type EventHistory interface {
	Recent(ctx context.Context, taskID string, limit int) ([]events.Event, error)
}

// Config holds the HTTP server settings.
type Config struct {
	Host  string
	Port  int
	Debug bool
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{Host: "localhost", Port: 8420}
}

// Server is the HTTP front end over one orchestrator.
type Server struct {
	orch       *orchestrator.Orchestrator
	history    EventHistory
	engine     *gin.Engine
	httpServer *http.Server
	startTime  time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithEventHistory enables the ?history query on event streams, replaying
// recorded events before live ones.
func WithEventHistory(h EventHistory) Option {
	return func(s *Server) { s.history = h }
}

// New creates a server over the given orchestrator.
func New(orch *orchestrator.Orchestrator, cfg Config, opts ...Option) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		orch:      orch,
		engine:    engine,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     engine,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: SSE connections are long-lived.
	}

	s.setupRoutes()
	return s
}

// setupRoutes wires the API surface.
func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.handleHealth)

	tasks := api.Group("/tasks")
	{
		tasks.POST("", s.handleCreateTask)
		tasks.GET("", s.handleListTasks)
		tasks.GET("/:id", s.handleGetTask)
		tasks.POST("/:id/resume", s.handleResumeTask)
		tasks.POST("/:id/cancel", s.handleCancelTask)
		tasks.GET("/:id/events", s.handleTaskEvents)
		tasks.GET("/:id/artifacts", s.handleTaskArtifacts)
	}

	// Firehose of every task's events, for debugging and dashboards.
	api.GET("/events", s.handleAllEvents)
}

// Handler returns the underlying HTTP handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start runs the server until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Printf("[server] listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Printf("[server] shutting down")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth reports liveness and uptime.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}
