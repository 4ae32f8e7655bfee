package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <task-id> [answer]",
	Short: "Answer a task's pending question",
	Long: `Resume an interrupted task on a running conductor server.

When no answer is given on the command line, reads one from stdin.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID := args[0]

		var answer string
		if len(args) == 2 {
			answer = args[1]
		} else {
			fmt.Print("answer: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil {
				return fmt.Errorf("reading answer: %w", err)
			}
			answer = strings.TrimSpace(line)
		}
		if answer == "" {
			return fmt.Errorf("answer must not be empty")
		}

		if err := postJSON("/api/tasks/"+taskID+"/resume", map[string]string{"answer": answer}); err != nil {
			return err
		}
		fmt.Printf("resumed %s\n", taskID)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a running task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := postJSON("/api/tasks/"+args[0]+"/cancel", nil); err != nil {
			return err
		}
		fmt.Printf("cancelled %s\n", args[0])
		return nil
	},
}

func init() {
	resumeCmd.Flags().StringVar(&serverURL, "server", "", "Server base URL (default from config)")
	cancelCmd.Flags().StringVar(&serverURL, "server", "", "Server base URL (default from config)")
}
