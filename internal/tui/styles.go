package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7B68EE"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00D4FF"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#7FFF00"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)
)

// Theme renders styled text, or plain text when color is off.
type Theme struct {
	Color bool
}

func (t Theme) render(s lipgloss.Style, text string) string {
	if !t.Color {
		return text
	}
	return s.Render(text)
}

func (t Theme) Title(text string) string { return t.render(titleStyle, text) }
func (t Theme) Label(text string) string { return t.render(labelStyle, text) }
func (t Theme) OK(text string) string    { return t.render(okStyle, text) }
func (t Theme) Error(text string) string { return t.render(errorStyle, text) }
func (t Theme) Dim(text string) string   { return t.render(dimStyle, text) }

// Field renders an aligned "label: value" line.
func (t Theme) Field(label string, value any) string {
	return fmt.Sprintf("  %s %v", t.Label(fmt.Sprintf("%-12s", label+":")), value)
}

// Stage is one timed step of a run.
type Stage struct {
	Name    string
	Elapsed time.Duration
}

// Timings renders stage durations as a table.
func (t Theme) Timings(stages []Stage, total time.Duration) string {
	var sb strings.Builder
	for _, s := range stages {
		sb.WriteString(t.Field(s.Name, s.Elapsed.Round(time.Microsecond)) + "\n")
	}
	sb.WriteString(t.Field("total", t.OK(total.Round(time.Microsecond).String())) + "\n")
	return sb.String()
}
