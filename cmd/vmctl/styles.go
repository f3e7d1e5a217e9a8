package main

import "github.com/charmbracelet/lipgloss"

var (
	// Color palette
	primaryColor = lipgloss.Color("#7D56F4")
	successColor = lipgloss.Color("#04B575")
	accentColor  = lipgloss.Color("#00D7FF")
	warningColor = lipgloss.Color("#FFA500")
	mutedColor   = lipgloss.Color("#666666")
	borderColor  = lipgloss.Color("#383838")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	gridStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(0, 1)

	legendStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// Frame cells. Adjacent runs alternate colors so their boundary shows.
	tableCellStyle = lipgloss.NewStyle().Foreground(warningColor)
	freeCellStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	runCellStyles  = [2]lipgloss.Style{
		lipgloss.NewStyle().Foreground(successColor),
		lipgloss.NewStyle().Foreground(accentColor),
	}
)

// plainStyles strips every style for --no-color.
func plainStyles() {
	plain := lipgloss.NewStyle()
	headerStyle = plain.Padding(0, 1)
	gridStyle = plain.Border(lipgloss.NormalBorder()).Padding(0, 1)
	legendStyle = plain
	tableCellStyle = plain
	freeCellStyle = plain
	runCellStyles = [2]lipgloss.Style{plain, plain}
}
