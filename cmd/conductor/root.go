package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "conductor",
	Short: "LLM agent orchestration for long-running tasks",
	Long: `Conductor runs tasks through supervising LLM agents that can delegate
sub-problems to focused sub-agents, report progress, produce artifacts, and
pause to ask the human a question before continuing.

Core capabilities:
- Drives a supervisor agent loop with tool dispatch per task
- Delegates focused work to isolated sub-agents
- Suspends on clarifying questions and resumes with your answer
- Streams every state transition as events over SSE
- Persists tasks, checkpoints, and events in SQLite`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
