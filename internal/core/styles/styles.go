// Package styles provides shared lipgloss styles for CLI output.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	// Title renders headers in human-readable output.
	Title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7aa2f7"))

	// Success renders created and completed counts.
	Success = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ece6a"))

	// Warning renders conflicts and skipped work.
	Warning = lipgloss.NewStyle().Foreground(lipgloss.Color("#e0af68"))

	// Error renders failures.
	Error = lipgloss.NewStyle().Foreground(lipgloss.Color("#f7768e"))

	// Muted renders secondary detail like timestamps and paths.
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("#565f89"))

	// Label renders key names in key/value rows.
	Label = lipgloss.NewStyle().Bold(true)
)

// Bullet prefixes text with a styled marker.
func Bullet(style lipgloss.Style, text string) string {
	return style.Render("•") + " " + text
}

// KV renders a "key: value" row with a bold key.
func KV(key, value string) string {
	return Label.Render(key+":") + " " + value
}
