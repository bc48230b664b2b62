package components

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/lexiworks/lexisurvey/internal/ui/theme"
)

// Choice is one selectable option.
type Choice struct {
	ID   string
	Text string
}

// MultiChoice is a single-answer selector. Options are labelled A, B, C...
// and can be picked with the arrow keys or by their letter.
type MultiChoice struct {
	Prompt    string
	Choices   []Choice
	Selected  int
	Submitted bool
}

func NewMultiChoice(prompt string, choices []Choice) MultiChoice {
	return MultiChoice{Prompt: prompt, Choices: choices}
}

// Label returns the letter for the i-th option.
func Label(i int) string {
	return string(rune('A' + i))
}

// Update handles navigation. Enter submits the highlighted choice; a
// letter key highlights and submits in one step.
func (m MultiChoice) Update(msg tea.Msg) (MultiChoice, tea.Cmd) {
	if m.Submitted || len(m.Choices) == 0 {
		return m, nil
	}
	kmsg, ok := msg.(tea.KeyPressMsg)
	if !ok {
		return m, nil
	}

	switch key := kmsg.String(); key {
	case "up", "k":
		if m.Selected > 0 {
			m.Selected--
		}
	case "down", "j":
		if m.Selected < len(m.Choices)-1 {
			m.Selected++
		}
	case "enter":
		m.Submitted = true
	default:
		if len(key) == 1 {
			i := int(strings.ToUpper(key)[0]) - 'A'
			if i >= 0 && i < len(m.Choices) {
				m.Selected = i
				m.Submitted = true
			}
		}
	}
	return m, nil
}

// SelectedID returns the chosen option ID, or "" before submission.
func (m MultiChoice) SelectedID() string {
	if !m.Submitted || m.Selected >= len(m.Choices) {
		return ""
	}
	return m.Choices[m.Selected].ID
}

func (m MultiChoice) View() string {
	var b strings.Builder
	if m.Prompt != "" {
		b.WriteString(theme.Word.Render(m.Prompt))
		b.WriteString("\n\n")
	}
	for i, c := range m.Choices {
		prefix := "  "
		if i == m.Selected {
			prefix = "▸ "
		}
		line := fmt.Sprintf("%s%s)  %s", prefix, Label(i), c.Text)

		switch {
		case m.Submitted && i == m.Selected:
			line = theme.Chosen.Render(line)
		case m.Submitted:
			line = theme.Dimmed.Render(line)
		case i == m.Selected:
			line = theme.Selected.Render(line)
		default:
			line = theme.Unselected.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
