package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/conductor-ai/conductor/internal/events"
)

// PlainRenderer writes orchestration events as colored log lines. It is used
// when the interactive viewer is disabled or stdout is not a terminal.
type PlainRenderer struct {
	out io.Writer
}

// NewPlainRenderer creates a renderer writing to out.
func NewPlainRenderer(out io.Writer) *PlainRenderer {
	return &PlainRenderer{out: out}
}

// Render writes one event as a line. Stream chunks and thinking updates are
// suppressed to keep the output readable.
func (r *PlainRenderer) Render(ev events.Event) {
	ts := ev.Timestamp.Format("15:04:05")

	switch payload := ev.Payload.(type) {
	case events.TaskStatusPayload:
		line := fmt.Sprintf("%s → %s", payload.OldStatus, payload.NewStatus)
		if payload.Error != "" {
			line += ": " + payload.Error
		}
		fmt.Fprintf(r.out, "%s %s %s\n", ts, color.CyanString("[task]"), line)
		if payload.FinalAnswer != "" {
			fmt.Fprintf(r.out, "\n%s\n", payload.FinalAnswer)
		}

	case events.AgentStatusPayload:
		fmt.Fprintf(r.out, "%s %s %s: %s → %s\n",
			ts, color.MagentaString("[agent]"), ev.AgentID, payload.OldStatus, payload.NewStatus)

	case events.DialoguePayload:
		sender := payload.Sender
		if sender == "" {
			sender = ev.AgentID
		}
		fmt.Fprintf(r.out, "%s %s %s: %s\n", ts, color.BlueString("[dialogue]"), sender, payload.Data)

	case events.ToolCallPayload:
		switch ev.Type {
		case events.TypeToolCallInitiated:
			fmt.Fprintf(r.out, "%s %s %s requested\n", ts, color.YellowString("[tool]"), payload.ToolName)
		case events.TypeToolCallCompleted:
			fmt.Fprintf(r.out, "%s %s %s %s (%dms)\n",
				ts, color.YellowString("[tool]"), color.GreenString("✓"), payload.ToolName, payload.ExecutionMS)
		case events.TypeToolCallFailed:
			fmt.Fprintf(r.out, "%s %s %s %s: %s\n",
				ts, color.YellowString("[tool]"), color.RedString("✗"), payload.ToolName, payload.Error)
		}

	case events.ContentStreamPayload:
		// Chunks are noise in line mode; the final answer arrives on the
		// task status event.

	case events.ThinkingPayload:

	case events.ApprovalPayload:
		fmt.Fprintf(r.out, "%s %s %s\n", ts, color.YellowString("[question]"), payload.Prompt)
		if len(payload.Options) > 0 {
			fmt.Fprintf(r.out, "         options: %s\n", strings.Join(payload.Options, ", "))
		}

	default:
		fmt.Fprintf(r.out, "%s [%s]\n", ts, ev.Type)
	}
}
