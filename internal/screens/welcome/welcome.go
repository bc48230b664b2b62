package welcome

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/lexiworks/lexisurvey/internal/assessment"
	"github.com/lexiworks/lexisurvey/internal/router"
	"github.com/lexiworks/lexisurvey/internal/screen"
	"github.com/lexiworks/lexisurvey/internal/screens/quiz"
	"github.com/lexiworks/lexisurvey/internal/ui/components"
	"github.com/lexiworks/lexisurvey/internal/ui/layout"
	"github.com/lexiworks/lexisurvey/internal/ui/theme"
)

var errBadHint = errors.New("starting rank must be a positive number")

type startedMsg struct {
	res *assessment.StartResult
	err error
}

// WelcomeScreen asks for an optional starting rank and opens a session.
type WelcomeScreen struct {
	client   quiz.Client
	next     func(*assessment.StartResult) screen.Screen
	input    components.TextInput
	starting bool
	errMsg   string
}

var _ screen.Screen = (*WelcomeScreen)(nil)
var _ screen.KeyHintProvider = (*WelcomeScreen)(nil)

// New creates a WelcomeScreen. hint pre-fills the starting rank; next
// builds the screen for the started session.
func New(client quiz.Client, hint *int, next func(*assessment.StartResult) screen.Screen) *WelcomeScreen {
	input := components.NewTextInput("leave empty to start in the middle", true, 7)
	if hint != nil {
		input.Model.SetValue(strconv.Itoa(*hint))
	}
	return &WelcomeScreen{client: client, next: next, input: input}
}

func (w *WelcomeScreen) Title() string { return "" }

func (w *WelcomeScreen) Init() tea.Cmd {
	return w.input.Init()
}

func (w *WelcomeScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Begin"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (w *WelcomeScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case startedMsg:
		w.starting = false
		if msg.err != nil {
			w.errMsg = msg.err.Error()
			return w, nil
		}
		next := w.next(msg.res)
		return w, func() tea.Msg { return router.ReplaceScreenMsg{Screen: next} }

	case tea.KeyPressMsg:
		if w.starting {
			return w, nil
		}
		if msg.String() == "enter" {
			return w, w.start()
		}
	}

	var cmd tea.Cmd
	w.input, cmd = w.input.Update(msg)
	return w, cmd
}

func (w *WelcomeScreen) start() tea.Cmd {
	hint, err := w.input.OptionalInt()
	if err != nil || (hint != nil && *hint < 1) {
		w.errMsg = errBadHint.Error()
		return nil
	}
	w.errMsg = ""
	w.starting = true
	client := w.client
	return func() tea.Msg {
		res, err := client.StartSession(context.Background(), hint)
		return startedMsg{res: res, err: err}
	}
}

func (w *WelcomeScreen) View(width, height int) string {
	sections := []string{
		RenderBanner(width),
		"",
		theme.Body.Bold(true).Render("How many words do you know?"),
		theme.Subtitle.Render(fmt.Sprintf("A short adaptive survey, %d seconds per question", int(quiz.QuestionTime.Seconds()))),
		"",
		theme.Hint.Render("Starting rank (optional)"),
		w.input.View(),
	}

	switch {
	case w.starting:
		sections = append(sections, "", theme.Hint.Render("Preparing your first question..."))
	case w.errMsg != "":
		sections = append(sections, "", theme.Warning.Render(w.errMsg))
	}

	content := lipgloss.JoinVertical(lipgloss.Center, sections...)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, strings.TrimRight(content, "\n"))
}
