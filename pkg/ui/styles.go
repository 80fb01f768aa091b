package ui

import "github.com/charmbracelet/lipgloss"

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonOrange  = lipgloss.Color("#FF6700")
	dimWhite    = lipgloss.Color("#B0B0B0")

	borderStyle = lipgloss.NewStyle().Foreground(neonMagenta)

	headerStyle = lipgloss.NewStyle().
			Foreground(neonCyan).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Foreground(dimWhite).
			Padding(0, 1)

	numberStyle = cellStyle.Align(lipgloss.Right)

	titleStyle = lipgloss.NewStyle().
			Background(neonMagenta).
			Foreground(lipgloss.Color("#0A0E27")).
			Bold(true).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().Foreground(neonGreen).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(neonOrange).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	valueStyle   = lipgloss.NewStyle().Foreground(neonYellow)
)

// progressStyle colors a completion percentage
func progressStyle(pct float64) lipgloss.Style {
	switch {
	case pct >= 100:
		return successStyle
	case pct >= 50:
		return valueStyle
	case pct > 0:
		return warningStyle
	default:
		return cellStyle
	}
}
