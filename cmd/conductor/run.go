package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conductor-ai/conductor/internal/api"
	"github.com/conductor-ai/conductor/internal/config"
	"github.com/conductor-ai/conductor/internal/events"
	"github.com/conductor-ai/conductor/internal/orchestrator"
	"github.com/conductor-ai/conductor/internal/state"
	"github.com/conductor-ai/conductor/internal/tui"
	"github.com/conductor-ai/conductor/pkg/models"
)

var (
	runPlain     bool
	runModel     string
	runSubagents string
	runMaxIter   int
)

var runCmd = &cobra.Command{
	Use:   "run <task description>",
	Short: "Run a single task to completion",
	Long: `Run one task through a supervising agent and watch it live.

The viewer shows status transitions, tool calls, and dialogue as they
happen. When the agent asks a question the task pauses; type an answer to
continue. Use --plain for line-oriented output suitable for logs and pipes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().BoolVar(&runPlain, "plain", false, "Line output instead of the interactive viewer")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model override")
	runCmd.Flags().StringVar(&runSubagents, "subagents", "", "Subagent spec YAML file")
	runCmd.Flags().IntVar(&runMaxIter, "max-iterations", 0, "Model call cap per agent run")
}

func runTask(cmd *cobra.Command, args []string) error {
	description := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runMaxIter > 0 {
		cfg.Orchestrator.MaxIterations = runMaxIter
	}
	if cfg.TUI.Plain {
		runPlain = true
	}

	client, err := newModelClient(cfg, runModel)
	if err != nil {
		return err
	}

	specs, err := loadSubagentSpecs(cfg, runSubagents)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eventLog := state.NewEventLog(db)
	orch := orchestrator.New(client, orchestratorOptions(cfg, db, eventLog, specs)...)

	task, err := orch.CreateTask(description)
	if err != nil {
		return err
	}

	conn := orch.Broadcaster().Subscribe(task.ID)
	defer orch.Broadcaster().Unsubscribe(conn)

	if err := orch.Start(task.ID); err != nil {
		return err
	}

	if runPlain {
		outcome := runPlainLoop(orch, task.ID, conn)
		printTokenUsage(client)
		return outcome
	}

	if err := tui.Run(task.ID, orch, conn); err != nil {
		return err
	}
	outcome := printOutcome(orch, task.ID)
	printTokenUsage(client)
	return outcome
}

// printTokenUsage summarizes model token consumption for the run.
func printTokenUsage(client *api.Client) {
	in, out := client.Tracker().Total()
	if calls := client.Tracker().Calls(); calls > 0 {
		fmt.Printf("\ntokens: %d in / %d out over %d calls\n", in, out, calls)
	}
}

// runPlainLoop renders events as lines and answers questions from stdin.
func runPlainLoop(orch *orchestrator.Orchestrator, taskID string, conn *events.Connection) error {
	renderer := tui.NewPlainRenderer(os.Stdout)
	stdin := bufio.NewReader(os.Stdin)

	for ev := range conn.Events() {
		renderer.Render(ev)

		switch payload := ev.Payload.(type) {
		case events.ApprovalPayload:
			fmt.Print("> ")
			answer, err := stdin.ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading answer: %w", err)
			}
			answer = strings.TrimSpace(answer)
			if answer == "" {
				fmt.Println("empty answer, task stays interrupted")
				fmt.Printf("resume later with: conductor resume %s \"<answer>\"\n", taskID)
				return nil
			}
			if err := orch.Resume(context.Background(), taskID, answer); err != nil {
				return fmt.Errorf("resume: %w", err)
			}

		case events.TaskStatusPayload:
			if payload.NewStatus.Terminal() {
				return taskOutcomeErr(orch, taskID)
			}
		}
	}
	return nil
}

// printOutcome reports the final task state after the interactive viewer
// exits, since the alt screen clears on quit.
func printOutcome(orch *orchestrator.Orchestrator, taskID string) error {
	task, err := orch.Task(taskID)
	if err != nil {
		return err
	}

	switch task.Status {
	case models.TaskStatusCompleted:
		fmt.Printf("%s %s\n\n%s\n", color.GreenString("✓"), taskID, task.FinalAnswer)
	case models.TaskStatusFailed:
		fmt.Printf("%s %s: %s\n", color.RedString("✗"), taskID, task.Error)
	case models.TaskStatusInterrupted:
		fmt.Printf("%s %s is waiting for an answer\n", color.YellowString("⏸"), taskID)
		fmt.Printf("resume with: conductor resume %s \"<answer>\"\n", taskID)
	default:
		fmt.Printf("%s is %s\n", taskID, task.Status)
	}

	if artifacts, err := orch.Artifacts(taskID); err == nil && len(artifacts) > 0 {
		fmt.Println("\nartifacts:")
		for _, a := range artifacts {
			fmt.Printf("  %s (%d bytes, by %s)\n", a.Path, len(a.Content), a.AgentID)
		}
	}

	return taskOutcomeErr(orch, taskID)
}

// taskOutcomeErr maps a failed task to a non-zero exit.
func taskOutcomeErr(orch *orchestrator.Orchestrator, taskID string) error {
	task, err := orch.Task(taskID)
	if err != nil {
		return err
	}
	if task.Status == models.TaskStatusFailed {
		return fmt.Errorf("task failed: %s", task.Error)
	}
	return nil
}
