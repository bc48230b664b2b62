package tui

import (
	tea "charm.land/bubbletea/v2"

	"github.com/lexiworks/lexisurvey/internal/assessment"
	"github.com/lexiworks/lexisurvey/internal/router"
	"github.com/lexiworks/lexisurvey/internal/screen"
	"github.com/lexiworks/lexisurvey/internal/screens/quiz"
	"github.com/lexiworks/lexisurvey/internal/screens/results"
	"github.com/lexiworks/lexisurvey/internal/screens/welcome"
	"github.com/lexiworks/lexisurvey/internal/ui/layout"
)

// AppModel is the root Bubble Tea model.
type AppModel struct {
	router *router.Router
	width  int
	height int
}

// NewAppModel builds the welcome, quiz and results flow over client.
// hint pre-fills the starting rank.
func NewAppModel(client quiz.Client, hint *int) AppModel {
	var newWelcome func() screen.Screen
	newResults := func(step *assessment.StepResult) screen.Screen {
		return results.New(step, newWelcome)
	}
	newQuiz := func(start *assessment.StartResult) screen.Screen {
		return quiz.New(client, start, newResults)
	}
	newWelcome = func() screen.Screen {
		return welcome.New(client, hint, newQuiz)
	}
	return AppModel{router: router.New(newWelcome())}
}

func (m AppModel) Init() tea.Cmd {
	return m.router.Active().Init()
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.router.Depth() > 1 {
				return m, func() tea.Msg { return router.PopScreenMsg{} }
			}
		}
	}

	return m, m.router.Update(msg)
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true

	if m.width == 0 || m.height == 0 {
		return v
	}
	if layout.IsTooSmall(m.width, m.height) {
		v.SetContent(layout.RenderMinSizeMessage(m.width, m.height))
		return v
	}

	active := m.router.Active()
	var progress layout.Progress
	if pp, ok := active.(screen.ProgressProvider); ok {
		progress = pp.Progress()
	}
	header := layout.RenderHeader(active.Title(), progress, m.width)

	hints := []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	if kp, ok := active.(screen.KeyHintProvider); ok {
		hints = kp.KeyHints()
	}
	footer := layout.RenderFooter(hints, m.width)

	content := m.router.View(m.width, layout.ContentHeight(header, footer, m.height))
	v.SetContent(layout.RenderFrame(header, content, footer, m.width, m.height))
	return v
}

// Run starts the terminal client and blocks until it exits.
func Run(client quiz.Client, hint *int) error {
	_, err := tea.NewProgram(NewAppModel(client, hint)).Run()
	return err
}
