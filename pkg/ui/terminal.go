package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Banner printed by the run command
const Banner = `
  ┌─┐┬─┐┬┌─┐┌┐┌┌┬┐┌─┐┌─┐┌─┐
  ├┤ ├┬┘│├┤ │││ ││├─┐├┤ │ │
  └  ┴└─┴└─┘┘└┘─┴┘└─┘└─┘└─┘  friend-network location inference
`

// output receives every Print helper; tests swap it
var output io.Writer = os.Stdout

var (
	bannerStyle    = lipgloss.NewStyle().Foreground(neonCyan)
	labelStyle     = lipgloss.NewStyle().Foreground(neonCyan)
	highlightStyle = lipgloss.NewStyle().Foreground(neonMagenta).Bold(true)
)

// withDetail appends the first of args to msg as "msg: detail"
func withDetail(msg string, args []interface{}) string {
	if len(args) > 0 {
		return msg + ": " + fmt.Sprintf("%v", args[0])
	}
	return msg
}

func PrintBanner() {
	fmt.Fprint(output, bannerStyle.Render(Banner))
}

// PrintError prints an error message, with an optional detail
func PrintError(msg string, args ...interface{}) {
	fmt.Fprintln(output, errorStyle.Render(withDetail(msg, args)))
}

func PrintSuccess(msg string) {
	fmt.Fprintln(output, successStyle.Render(msg))
}

// PrintInfo prints a label/value pair
func PrintInfo(label string, value string) {
	fmt.Fprintf(output, "%s: %s\n", labelStyle.Render(label), valueStyle.Render(value))
}

func PrintWarning(msg string, args ...interface{}) {
	fmt.Fprintln(output, warningStyle.Render(withDetail(msg, args)))
}

func PrintHighlight(msg string) {
	fmt.Fprintln(output, highlightStyle.Render(msg))
}
