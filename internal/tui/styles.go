package tui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	// TitleStyle is used for screen titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")). // Purple
			MarginBottom(1)

	// SelectedItemStyle is used for highlighted/selected items.
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")). // Light purple
				Bold(true)

	// NormalItemStyle is used for non-selected items.
	NormalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")) // Light gray

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")). // Red
			Bold(true)

	// PromptStyle is used for prompt text.
	PromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99")). // Light blue
			MarginBottom(1)

	// HelpStyle is used for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")). // Dark gray
			MarginTop(1)

	// CompleteStyle marks fully found items and groups.
	CompleteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")) // Green
)

var hexRGB = regexp.MustCompile(`^[0-9A-Fa-f]{6}$`)

// Swatch renders a two-cell block in the item's color. Unknown colors render
// as a dim placeholder.
func Swatch(rgb string) string {
	rgb = strings.TrimPrefix(rgb, "#")
	if !hexRGB.MatchString(rgb) {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("░░")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#" + rgb)).Render("██")
}

// ProgressBar renders percent as a bar of the given width.
func ProgressBar(percent, width int) string {
	if width < 1 {
		return ""
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := percent * width / 100
	return CompleteStyle.Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(lipgloss.Color("238")).Render(strings.Repeat("░", width-filled))
}
