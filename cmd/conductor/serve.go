package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conductor-ai/conductor/internal/config"
	"github.com/conductor-ai/conductor/internal/events"
	"github.com/conductor-ai/conductor/internal/orchestrator"
	"github.com/conductor-ai/conductor/internal/server"
	"github.com/conductor-ai/conductor/internal/signals"
	"github.com/conductor-ai/conductor/internal/state"
)

var (
	serveHost      string
	servePort      int
	serveDB        string
	serveSubagents string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conductor API server",
	Long: `Start the HTTP server that accepts tasks, streams their events over
SSE, and answers questions posed by running agents.

Tasks, checkpoints, and events persist in SQLite. Tasks left running by a
previous process are marked failed on startup; interrupted tasks keep their
checkpoints and can be resumed.

The control directory accepts file-based steering: drop cancel-<task-id> to
cancel a task, or answer-<task-id> with the answer as contents to resume one.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind address (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "Database path (default from config)")
	serveCmd.Flags().StringVar(&serveSubagents, "subagents", "", "Subagent spec YAML file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveDB != "" {
		cfg.Storage.DBPath = serveDB
	}

	client, err := newModelClient(cfg, "")
	if err != nil {
		return err
	}

	specs, err := loadSubagentSpecs(cfg, serveSubagents)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if recovered, err := db.RecoverStaleTasks(ctx); err != nil {
		log.Printf("[serve] recover stale tasks: %v", err)
	} else if recovered > 0 {
		log.Printf("[serve] marked %d stale running task(s) failed", recovered)
	}
	if cfg.Storage.EventRetention > 0 {
		if purged, err := db.PurgeOldEvents(cfg.Storage.EventRetention); err != nil {
			log.Printf("[serve] purge old events: %v", err)
		} else if purged > 0 {
			log.Printf("[serve] purged %d old event(s)", purged)
		}
	}

	eventLog := state.NewEventLog(db)
	opts := orchestratorOptions(cfg, db, eventLog, specs)
	if cfg.Server.ReplayBuffer > 0 {
		opts = append(opts, orchestrator.WithBroadcaster(
			events.NewBroadcaster(events.WithReplayBuffer(cfg.Server.ReplayBuffer))))
	}
	orch := orchestrator.New(client, opts...)

	watcher, err := signals.NewControlWatcher(signals.DefaultControlDir(), signals.Handlers{
		Cancel: func(taskID string) {
			if err := orch.Cancel(taskID); err != nil {
				log.Printf("[serve] control cancel %s: %v", taskID, err)
			}
		},
		Answer: func(taskID, answer string) {
			if err := orch.Resume(context.Background(), taskID, answer); err != nil {
				log.Printf("[serve] control answer %s: %v", taskID, err)
			}
		},
	})
	if err != nil {
		log.Printf("[serve] control watcher disabled: %v", err)
	} else {
		defer watcher.Close()
		log.Printf("[serve] control directory: %s", watcher.Dir())
	}

	srv := server.New(orch, server.Config{
		Host:  cfg.Server.Host,
		Port:  cfg.Server.Port,
		Debug: cfg.Server.Debug,
	}, server.WithEventHistory(eventLog))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Printf("[serve] received %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
