package quiz

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/lexiworks/lexisurvey/internal/ui/components"
	"github.com/lexiworks/lexisurvey/internal/ui/layout"
	"github.com/lexiworks/lexisurvey/internal/ui/theme"
)

func (q *QuizScreen) View(width, height int) string {
	if q.question == nil {
		return layout.Center(theme.Hint.Render("Preparing question..."), width, height)
	}

	cardWidth := min(width-4, 64)
	var b strings.Builder

	b.WriteString(theme.Hint.Render("What does this word mean?"))
	b.WriteString("\n\n")
	b.WriteString(q.mc.View())
	b.WriteString("\n")

	timer := components.ProgressBar{
		Label:   fmt.Sprintf("%2ds", int(q.remaining.Seconds())),
		Percent: float64(q.remaining) / float64(QuestionTime),
		Width:   cardWidth - 8,
		LowMark: 0.25,
	}
	b.WriteString(timer.View())

	switch {
	case q.submitting:
		b.WriteString("\n\n" + theme.Hint.Render("Checking..."))
	case q.aborted:
		b.WriteString("\n\n" + theme.Warning.Render("The survey cannot continue: "+q.errMsg))
	case q.errMsg != "":
		b.WriteString("\n\n" + theme.Warning.Render(q.errMsg))
		b.WriteString("\n" + theme.Hint.Render("press r to try again"))
	}

	card := theme.Card.Width(cardWidth).Render(b.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, card)
}
