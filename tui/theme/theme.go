// Package theme holds the terminal palette shared by help output and the
// live table dashboard.
package theme

import "github.com/charmbracelet/lipgloss"

// Colors is the palette. Each entry adapts to light and dark terminals.
type Colors struct {
	Red    lipgloss.TerminalColor
	Green  lipgloss.TerminalColor
	Yellow lipgloss.TerminalColor
	Orange lipgloss.TerminalColor
	Blue   lipgloss.TerminalColor
	Cyan   lipgloss.TerminalColor
	Violet lipgloss.TerminalColor
	Muted  lipgloss.TerminalColor
	Border lipgloss.TerminalColor
}

// Theme bundles the styles used across the CLI.
type Theme struct {
	Colors Colors

	Title       lipgloss.Style
	Section     lipgloss.Style
	Italic      lipgloss.Style
	Muted       lipgloss.Style
	Success     lipgloss.Style
	Error       lipgloss.Style
	Warning     lipgloss.Style
	TableHeader lipgloss.Style
	TableRow    lipgloss.Style
	Box         lipgloss.Style
}

// Ink and parchment, the colours of a patrol ledger.
func defaultColors() Colors {
	return Colors{
		Red:    lipgloss.AdaptiveColor{Light: "#A33B2B", Dark: "#E46A5A"},
		Green:  lipgloss.AdaptiveColor{Light: "#4A6B3A", Dark: "#9BBF7A"},
		Yellow: lipgloss.AdaptiveColor{Light: "#8C6D1F", Dark: "#E3C16F"},
		Orange: lipgloss.AdaptiveColor{Light: "#9A5424", Dark: "#E9955A"},
		Blue:   lipgloss.AdaptiveColor{Light: "#3A5A7A", Dark: "#86A9CC"},
		Cyan:   lipgloss.AdaptiveColor{Light: "#2F6F6F", Dark: "#7EC2BE"},
		Violet: lipgloss.AdaptiveColor{Light: "#5E4A7A", Dark: "#AE98CF"},
		Muted:  lipgloss.AdaptiveColor{Light: "#7A7468", Dark: "#8A8478"},
		Border: lipgloss.AdaptiveColor{Light: "#C9C0AE", Dark: "#45403A"},
	}
}

// New builds a theme from c.
func New(c Colors) *Theme {
	return &Theme{
		Colors:      c,
		Title:       lipgloss.NewStyle().Bold(true).Foreground(c.Orange),
		Section:     lipgloss.NewStyle().Italic(true).Foreground(c.Orange),
		Italic:      lipgloss.NewStyle().Italic(true),
		Muted:       lipgloss.NewStyle().Foreground(c.Muted),
		Success:     lipgloss.NewStyle().Bold(true).Foreground(c.Green),
		Error:       lipgloss.NewStyle().Bold(true).Foreground(c.Red),
		Warning:     lipgloss.NewStyle().Foreground(c.Yellow),
		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(c.Blue).Padding(0, 1),
		TableRow:    lipgloss.NewStyle().Padding(0, 1),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(c.Border).
			Padding(0, 1),
	}
}

// DefaultTheme is the theme every command renders with.
var DefaultTheme = New(defaultColors())
