// Package style defines lipgloss styles for the TUI.
package style

import "github.com/charmbracelet/lipgloss"

// Styles are package-level values; lipgloss styles are value types and safe
// for concurrent use. Names omit a "Style" suffix (style.Title, not
// style.TitleStyle).
var (
	// Title is used for screen titles and the recording indicator.
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205"))

	// Subtitle is used for secondary text such as elapsed time.
	Subtitle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	Success = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	Error = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	// Warning is used for the paused indicator and recoverable failures.
	Warning = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	// Help is used for keyboard shortcut hints.
	Help = lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	// Key is used for highlighting keyboard keys.
	Key = lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Bold(true)

	// Meter is used for the input level meter and playback progress.
	Meter = lipgloss.NewStyle().
		Foreground(lipgloss.Color("63"))

	// Label is used for inline labels (e.g., "Appointment:", "Saved:").
	Label = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("255"))

	// Muted is used for de-emphasized text (e.g., processing entries).
	Muted = lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))

	// Cursor marks the selected row in lists.
	Cursor = lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Bold(true)

	// Playing marks the catalog entry that is currently audible.
	Playing = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)
)
