package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/conductor-ai/conductor/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	questionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	statusColors = map[models.TaskStatus]string{
		models.TaskStatusCreated:     "243",
		models.TaskStatusRunning:     "39",
		models.TaskStatusInterrupted: "214",
		models.TaskStatusCompleted:   "42",
		models.TaskStatusFailed:      "196",
	}
)

// statusStyle returns the style for a task status badge.
func statusStyle(status models.TaskStatus) lipgloss.Style {
	color, ok := statusColors[status]
	if !ok {
		color = "243"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
}
