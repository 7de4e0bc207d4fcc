package cli

import "github.com/charmbracelet/lipgloss"

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(16)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

// stateStyle colors a lifecycle or window state
func stateStyle(state string) lipgloss.Style {
	switch state {
	case "ready", "created", "enabled":
		return okStyle
	case "shutting-down", "destroyed":
		return warnStyle
	case "terminated", "disabled":
		return errStyle
	default:
		return dimStyle
	}
}

func levelStyle(level string) lipgloss.Style {
	switch level {
	case "ERROR":
		return errStyle
	case "WARN":
		return warnStyle
	case "DEBUG":
		return dimStyle
	default:
		return lipgloss.NewStyle()
	}
}
