package tui

import "github.com/charmbracelet/lipgloss"

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	statusStyles = map[string]lipgloss.Style{
		// Terminal states
		"cached":     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"downloaded": lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"copied":     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"pushed":     lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"running":    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		"removed":    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),

		// Active states
		"resolving":   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"downloading": lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"copying":     lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"pushing":     lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"starting":    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		"stopping":    lipgloss.NewStyle().Foreground(lipgloss.Color("4")),

		// Attention
		"stopped":     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"not-present": lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"unknown":     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		"skipped":     lipgloss.NewStyle().Foreground(lipgloss.Color("3")),

		// Error
		"error": lipgloss.NewStyle().Foreground(lipgloss.Color("1")),

		// Pending
		"pending": lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
