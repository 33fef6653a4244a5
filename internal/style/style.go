// Package style renders the open/close commands' boxed header and
// "check mark" status lines, reusing the teacher's own
// internal/pkg/tui/theme color palette (lipgloss Success/Warning/Error)
// for a plain, non-Bubble-Tea CLI report.
package style

import "github.com/charmbracelet/lipgloss"

var (
	Success = lipgloss.Color("#22C55E")
	Warning = lipgloss.Color("#F59E0B")
	Error   = lipgloss.Color("#EF4444")
	Info    = lipgloss.Color("#3B82F6")
	Muted   = lipgloss.Color("#6B7280")
	White   = lipgloss.Color("#FFFFFF")
	Purple  = lipgloss.Color("#A855F7")
)

var (
	successStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(Warning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(Muted)
	titleStyle   = lipgloss.NewStyle().Foreground(White).Bold(true)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Purple).
			Padding(0, 2)
)

// StepStatus is the three-valued outcome of a single preflight step.
type StepStatus int

const (
	StepOK StepStatus = iota
	StepWarn
	StepFail
)

// Step renders one "✓ name — detail" status line.
func Step(status StepStatus, name, detail string) string {
	var mark, rendered string
	switch status {
	case StepOK:
		mark = successStyle.Render("✓")
		rendered = name
	case StepWarn:
		mark = warnStyle.Render("!")
		rendered = warnStyle.Render(name)
	default:
		mark = errorStyle.Render("✗")
		rendered = errorStyle.Render(name)
	}
	if detail == "" {
		return mark + " " + rendered
	}
	return mark + " " + rendered + " " + mutedStyle.Render("— "+detail)
}

// Header renders the boxed title line printed at the top of the open and
// close commands.
func Header(title string) string {
	return boxStyle.Render(titleStyle.Render(title))
}

// Hint renders a dimmed remediation hint under a failed step.
func Hint(text string) string {
	return mutedStyle.Render("  hint: " + text)
}
