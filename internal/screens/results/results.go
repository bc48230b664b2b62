package results

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/lexiworks/lexisurvey/internal/assessment"
	"github.com/lexiworks/lexisurvey/internal/router"
	"github.com/lexiworks/lexisurvey/internal/scoring"
	"github.com/lexiworks/lexisurvey/internal/screen"
	"github.com/lexiworks/lexisurvey/internal/ui/components"
	"github.com/lexiworks/lexisurvey/internal/ui/layout"
	"github.com/lexiworks/lexisurvey/internal/ui/theme"
)

// maxCurveRows bounds how many curve samples are drawn.
const maxCurveRows = 8

// ResultsScreen shows the report of a completed session.
type ResultsScreen struct {
	step   *assessment.StepResult
	report *scoring.Report
	menu   components.Menu
}

var _ screen.Screen = (*ResultsScreen)(nil)
var _ screen.ProgressProvider = (*ResultsScreen)(nil)

// New creates a ResultsScreen. again, when set, builds the screen for a
// new attempt.
func New(step *assessment.StepResult, again func() screen.Screen) *ResultsScreen {
	var items []components.MenuItem
	if again != nil {
		items = append(items, components.MenuItem{Label: "Take another survey", Action: func() tea.Cmd {
			next := again()
			return func() tea.Msg { return router.ReplaceScreenMsg{Screen: next} }
		}})
	}
	items = append(items, components.MenuItem{Label: "Quit", Action: func() tea.Cmd { return tea.Quit }})

	return &ResultsScreen{step: step, report: step.Report, menu: components.NewMenu(items)}
}

func (r *ResultsScreen) Init() tea.Cmd { return nil }

func (r *ResultsScreen) Title() string { return "Results" }

func (r *ResultsScreen) Progress() layout.Progress {
	return layout.Progress{Answered: r.step.QuestionCount, Total: r.step.Total}
}

func (r *ResultsScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	var cmd tea.Cmd
	r.menu, cmd = r.menu.Update(msg)
	return r, cmd
}

func (r *ResultsScreen) View(width, height int) string {
	cardWidth := min(width-4, 64)
	var b strings.Builder

	b.WriteString(theme.Title.Width(cardWidth - 8).Render("Your vocabulary profile"))
	b.WriteString("\n\n")

	if r.report == nil {
		b.WriteString(theme.Hint.Render("No report is available for this session."))
	} else {
		rep := r.report
		b.WriteString(metric("Volume", fmt.Sprintf("~%s words", groupDigits(int(rep.Volume+0.5)))))
		b.WriteString(metric("Reach", fmt.Sprintf("rank %s", groupDigits(int(rep.Reach)))))
		b.WriteString(metric("Density", FormatDensity(rep.Density)))
		b.WriteString(metric("Score", fmt.Sprintf("%d / %d correct", rep.Correct, rep.Answers)))
		b.WriteString("\n")
		b.WriteString(r.renderCurve(cardWidth - 8))
	}

	b.WriteString("\n")
	b.WriteString(r.menu.View())

	card := theme.Card.Width(cardWidth).Render(b.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, card)
}

func (r *ResultsScreen) renderCurve(width int) string {
	pts := r.report.Curve
	if len(pts) == 0 {
		return ""
	}
	stride := max((len(pts)+maxCurveRows-1)/maxCurveRows, 1)

	var b strings.Builder
	b.WriteString(theme.Hint.Render("recognition by rank") + "\n")
	for i := 0; i < len(pts); i += stride {
		bar := components.ProgressBar{
			Label:       fmt.Sprintf("%7s", groupDigits(int(pts[i].Rank))),
			Percent:     pts[i].P,
			ShowPercent: true,
			Width:       width,
		}
		b.WriteString(bar.View() + "\n")
	}
	return b.String()
}

func metric(label, value string) string {
	return theme.MetricLabel.Render(label) + theme.MetricValue.Render(value) + "\n"
}

// FormatDensity renders a density ratio as a percentage, or "n/a" when
// no answer fell below reach.
func FormatDensity(d *float64) string {
	if d == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", *d*100)
}

// groupDigits formats n with thousands separators.
func groupDigits(n int) string {
	s := fmt.Sprint(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}
