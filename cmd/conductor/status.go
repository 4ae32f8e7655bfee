package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conductor-ai/conductor/internal/config"
	"github.com/conductor-ai/conductor/pkg/models"
)

var statusFilter string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List tasks and their states",
	Long: `List tasks from the local database, newest first.

Works without a running server. Use --status to filter, e.g.
conductor status --status interrupted to find tasks waiting on an answer.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (created|running|interrupted|completed|failed)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	var filter *models.TaskStatus
	if statusFilter != "" {
		status := models.TaskStatus(statusFilter)
		if !status.Valid() {
			return fmt.Errorf("invalid status %q", statusFilter)
		}
		filter = &status
	}

	tasks, err := db.ListTasks(context.Background(), filter)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCREATED\tDESCRIPTION")
	for _, task := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			task.ID,
			colorStatus(task.Status),
			task.CreatedAt.Local().Format("2006-01-02 15:04"),
			truncate(task.Description, 60))
	}
	return w.Flush()
}

// colorStatus renders a task status with its conventional color.
func colorStatus(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusRunning:
		return color.CyanString(string(status))
	case models.TaskStatusInterrupted:
		return color.YellowString(string(status))
	case models.TaskStatusCompleted:
		return color.GreenString(string(status))
	case models.TaskStatusFailed:
		return color.RedString(string(status))
	default:
		return string(status)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
