package screen

import (
	tea "charm.land/bubbletea/v2"

	"github.com/lexiworks/lexisurvey/internal/ui/layout"
)

// Screen is one page of the terminal client.
type Screen interface {
	Init() tea.Cmd

	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the content area between header and footer.
	View(width, height int) string

	// Title is shown in the header.
	Title() string
}

// KeyHintProvider lets a screen replace the default footer hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// ProgressProvider lets a screen report survey progress for the header.
type ProgressProvider interface {
	Progress() layout.Progress
}
