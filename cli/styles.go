package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/smokejel/reqflow"
)

// Color palette
var (
	colorSuccess = lipgloss.Color("#00D787")
	colorError   = lipgloss.Color("#FF5F87")
	colorWarning = lipgloss.Color("#FFAF00")
	colorInfo    = lipgloss.Color("#5FAFFF")
	colorMuted   = lipgloss.Color("#888888")
)

// Text styles
var (
	styleSuccess = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleError   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleInfo    = lipgloss.NewStyle().Foreground(colorInfo)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleTitle   = lipgloss.NewStyle().Foreground(colorInfo).Bold(true)
)

// styleStatus renders a run status with its severity color.
func styleStatus(status reqflow.RunStatus) string {
	switch status {
	case reqflow.StatusCompleted:
		return styleSuccess.Render(string(status))
	case reqflow.StatusFailed:
		return styleError.Render(string(status))
	case reqflow.StatusAwaitingReview, reqflow.StatusCancelled:
		return styleWarning.Render(string(status))
	case reqflow.StatusRunning:
		return styleInfo.Render(string(status))
	default:
		return styleMuted.Render(string(status))
	}
}
