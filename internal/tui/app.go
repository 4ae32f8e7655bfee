// Package tui provides the terminal user interface for conductor.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/conductor-ai/conductor/internal/events"
	"github.com/conductor-ai/conductor/pkg/models"
)

// maxLogLines bounds the rolling activity log.
const maxLogLines = 500

// Resumer answers a pending question on an interrupted task.
type Resumer interface {
	Resume(ctx context.Context, taskID, answer string) error
}

// EventMsg wraps one orchestration event for the viewer.
type EventMsg struct {
	Event events.Event
}

// StreamClosedMsg signals that the event connection closed.
type StreamClosedMsg struct{}

// AnswerErrMsg reports a failed resume attempt.
type AnswerErrMsg struct {
	Err error
}

// logLine is one rendered row of the activity log.
type logLine struct {
	timestamp time.Time
	kind      events.Type
	text      string
}

// App is the bubbletea model that renders one task's live event stream.
type App struct {
	taskID  string
	resumer Resumer

	status      models.TaskStatus
	phase       string
	err         string
	finalAnswer string

	agentIDs []string
	agents   map[string]models.AgentStatus

	lines []logLine

	question  *events.ApprovalPayload
	answering bool
	input     textinput.Model
	spin      spinner.Model

	width    int
	height   int
	quitting bool
	done     bool
}

// New creates an App for the given task.
func New(taskID string, resumer Resumer) *App {
	ti := textinput.New()
	ti.Placeholder = "Type an answer and press Enter..."
	ti.CharLimit = 2000
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &App{
		taskID:  taskID,
		resumer: resumer,
		status:  models.TaskStatusCreated,
		agents:  make(map[string]models.AgentStatus),
		input:   ti,
		spin:    sp,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.spin.Tick
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 6

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case EventMsg:
		a.handleEvent(msg.Event)
		if a.done {
			return a, tea.Quit
		}
		return a, nil

	case StreamClosedMsg:
		a.done = true
		return a, tea.Quit

	case AnswerErrMsg:
		a.appendLine(events.TypeApprovalRequired, "resume failed: "+msg.Err.Error())
		a.answering = true
		return a, a.input.Focus()
	}

	if a.answering {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

// handleKey processes key presses.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		a.quitting = true
		return a, tea.Quit
	case "q":
		if !a.answering {
			a.quitting = true
			return a, tea.Quit
		}
	case "enter":
		if a.answering {
			answer := strings.TrimSpace(a.input.Value())
			if answer == "" {
				return a, nil
			}
			a.answering = false
			a.question = nil
			a.input.Reset()
			a.input.Blur()
			a.appendLine(events.TypeDialogueUpdate, "you ▸ "+answer)
			return a, a.submitAnswer(answer)
		}
	}

	if a.answering {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

// submitAnswer resumes the task with the given answer.
func (a *App) submitAnswer(answer string) tea.Cmd {
	return func() tea.Msg {
		if a.resumer == nil {
			return AnswerErrMsg{Err: fmt.Errorf("no resumer configured")}
		}
		if err := a.resumer.Resume(context.Background(), a.taskID, answer); err != nil {
			return AnswerErrMsg{Err: err}
		}
		return nil
	}
}

// handleEvent folds one orchestration event into the model.
func (a *App) handleEvent(ev events.Event) {
	switch payload := ev.Payload.(type) {
	case events.TaskStatusPayload:
		a.status = payload.NewStatus
		a.phase = payload.Phase
		a.err = payload.Error
		if payload.FinalAnswer != "" {
			a.finalAnswer = payload.FinalAnswer
		}
		if payload.NewStatus.Terminal() {
			a.done = true
		}

	case events.AgentStatusPayload:
		if _, ok := a.agents[ev.AgentID]; !ok {
			a.agentIDs = append(a.agentIDs, ev.AgentID)
		}
		a.agents[ev.AgentID] = payload.NewStatus

	case events.DialoguePayload:
		sender := payload.Sender
		if sender == "" {
			sender = ev.AgentID
		}
		a.appendLine(ev.Type, fmt.Sprintf("%s ▸ %s", sender, firstLine(payload.Data)))

	case events.ToolCallPayload:
		switch ev.Type {
		case events.TypeToolCallInitiated:
			a.appendLine(ev.Type, fmt.Sprintf("⚙ %s requested", payload.ToolName))
		case events.TypeToolCallCompleted:
			a.appendLine(ev.Type, fmt.Sprintf("✓ %s (%dms)", payload.ToolName, payload.ExecutionMS))
		case events.TypeToolCallFailed:
			a.appendLine(ev.Type, fmt.Sprintf("✗ %s: %s", payload.ToolName, payload.Error))
		}

	case events.ContentStreamPayload:
		if payload.Status == events.StreamComplete && payload.FullContent != "" {
			a.finalAnswer = payload.FullContent
		}

	case events.ApprovalPayload:
		q := payload
		a.question = &q
		a.answering = true
		a.input.Focus()
		a.appendLine(ev.Type, "? "+payload.Prompt)
	}
}

// appendLine adds a row to the rolling activity log.
func (a *App) appendLine(kind events.Type, text string) {
	a.lines = append(a.lines, logLine{timestamp: time.Now(), kind: kind, text: text})
	if len(a.lines) > maxLogLines {
		a.lines = a.lines[len(a.lines)-maxLogLines:]
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder
	b.WriteString(a.viewHeader())
	b.WriteString("\n\n")
	b.WriteString(a.viewLog())

	if a.question != nil {
		b.WriteString("\n")
		b.WriteString(questionStyle.Render("? " + a.question.Prompt))
		if len(a.question.Options) > 0 {
			b.WriteString("\n")
			b.WriteString(dimStyle.Render("  options: " + strings.Join(a.question.Options, ", ")))
		}
		b.WriteString("\n")
		b.WriteString(a.input.View())
	}

	if a.done && a.finalAnswer != "" {
		b.WriteString("\n\n")
		b.WriteString(answerStyle.Render(a.finalAnswer))
	}

	b.WriteString("\n\n")
	b.WriteString(a.viewFooter())
	return b.String()
}

// viewHeader renders the task status line and agent roster.
func (a *App) viewHeader() string {
	status := statusStyle(a.status).Render(string(a.status))
	head := fmt.Sprintf("%s  %s", titleStyle.Render(a.taskID), status)
	if a.status == models.TaskStatusRunning {
		head = a.spin.View() + " " + head
	}
	if a.phase != "" {
		head += dimStyle.Render("  " + a.phase)
	}
	if a.err != "" {
		head += "\n" + errorStyle.Render("error: "+a.err)
	}

	if len(a.agentIDs) > 0 {
		var agents []string
		for _, id := range a.agentIDs {
			agents = append(agents, fmt.Sprintf("%s[%s]", id, a.agents[id]))
		}
		head += "\n" + dimStyle.Render(strings.Join(agents, "  "))
	}
	return head
}

// viewLog renders the most recent activity rows that fit the window.
func (a *App) viewLog() string {
	if len(a.lines) == 0 {
		return dimStyle.Render("waiting for activity...")
	}

	visible := 20
	if a.height > 12 {
		visible = a.height - 10
	}
	start := 0
	if len(a.lines) > visible {
		start = len(a.lines) - visible
	}

	var rows []string
	for _, line := range a.lines[start:] {
		ts := line.timestamp.Format("15:04:05")
		rows = append(rows, fmt.Sprintf("%s %s", dimStyle.Render(ts), line.text))
	}
	return strings.Join(rows, "\n")
}

// viewFooter renders the help line.
func (a *App) viewFooter() string {
	if a.answering {
		return dimStyle.Render("Enter to answer | ctrl+c to quit")
	}
	if a.done {
		return dimStyle.Render("Press q to exit")
	}
	return dimStyle.Render("q to quit")
}

// firstLine truncates multi-line content to its first line.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// Run drives the viewer for one task until it reaches a terminal status or
// the user quits.
func Run(taskID string, resumer Resumer, conn *events.Connection) error {
	app := New(taskID, resumer)
	p := tea.NewProgram(app, tea.WithAltScreen())
	go func() {
		for ev := range conn.Events() {
			p.Send(EventMsg{Event: ev})
		}
		p.Send(StreamClosedMsg{})
	}()
	_, err := p.Run()
	return err
}

// FinalAnswer returns the assembled answer, if the task produced one.
func (a *App) FinalAnswer() string {
	return a.finalAnswer
}

// Status returns the last observed task status.
func (a *App) Status() models.TaskStatus {
	return a.status
}
