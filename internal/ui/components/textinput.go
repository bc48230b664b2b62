package components

import (
	"strconv"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
)

// TextInput wraps bubbles/textinput. With NumericOnly set, non-digit
// key presses are dropped.
type TextInput struct {
	Model       textinput.Model
	NumericOnly bool
}

func NewTextInput(placeholder string, numericOnly bool, maxWidth int) TextInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()
	if maxWidth > 0 {
		ti.CharLimit = maxWidth
	}
	return TextInput{Model: ti, NumericOnly: numericOnly}
}

func (t TextInput) Init() tea.Cmd {
	return t.Model.Focus()
}

func (t TextInput) Update(msg tea.Msg) (TextInput, tea.Cmd) {
	if t.NumericOnly {
		if kmsg, ok := msg.(tea.KeyPressMsg); ok {
			key := kmsg.String()
			if len(key) == 1 && (key[0] < '0' || key[0] > '9') {
				return t, nil
			}
		}
	}
	var cmd tea.Cmd
	t.Model, cmd = t.Model.Update(msg)
	return t, cmd
}

func (t TextInput) View() string {
	return t.Model.View()
}

func (t TextInput) Value() string {
	return strings.TrimSpace(t.Model.Value())
}

// OptionalInt parses the value as a positive integer. An empty input
// yields nil.
func (t TextInput) OptionalInt() (*int, error) {
	if t.Value() == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(t.Value())
	if err != nil {
		return nil, err
	}
	return &n, nil
}
