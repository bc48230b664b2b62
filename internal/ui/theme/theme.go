package theme

import (
	"charm.land/lipgloss/v2"
)

// Palette. Muted, high contrast on dark terminals.
var (
	Primary   = lipgloss.Color("#6366F1") // Indigo
	Secondary = lipgloss.Color("#0EA5E9") // Sky
	Accent    = lipgloss.Color("#F59E0B") // Amber
	Success   = lipgloss.Color("#10B981") // Emerald
	Error     = lipgloss.Color("#EF4444") // Red
	Text      = lipgloss.Color("#F1F5F9")
	TextDim   = lipgloss.Color("#94A3B8")
	BgCard    = lipgloss.Color("#1E293B")
	Border    = lipgloss.Color("#334155")
)

var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		Align(lipgloss.Center)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim).
			Align(lipgloss.Center)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	// Word is the prompt word of a question.
	Word = lipgloss.NewStyle().
		Bold(true).
		Foreground(Accent)

	Warning = lipgloss.NewStyle().
		Foreground(Error).
		Bold(true)
)

var (
	Card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(1, 3)

	// MetricLabel and MetricValue render one line of the results card.
	MetricLabel = lipgloss.NewStyle().
			Foreground(TextDim).
			Width(10)

	MetricValue = lipgloss.NewStyle().
			Foreground(Text).
			Bold(true)
)

var (
	Selected = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	Unselected = lipgloss.NewStyle().
			Foreground(Text)

	Chosen = lipgloss.NewStyle().
		Foreground(Secondary).
		Bold(true)

	Dimmed = lipgloss.NewStyle().
		Foreground(TextDim)
)

var (
	ProgressFilled = lipgloss.NewStyle().
			Background(Secondary)

	ProgressEmpty = lipgloss.NewStyle().
			Background(Border)

	// ProgressLow colours a countdown bar close to expiry.
	ProgressLow = lipgloss.NewStyle().
			Background(Error)
)
