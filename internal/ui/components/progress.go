package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/lexiworks/lexisurvey/internal/ui/theme"
)

// ProgressBar is a horizontal bar. Percent is clamped to [0, 1].
type ProgressBar struct {
	Label       string
	Percent     float64
	ShowPercent bool
	Width       int

	// LowMark, when positive, switches the fill to the warning colour at
	// or below that fraction.
	LowMark float64
}

func NewProgressBar(label string, percent float64, showPercent bool, width int) ProgressBar {
	return ProgressBar{
		Label:       label,
		Percent:     percent,
		ShowPercent: showPercent,
		Width:       width,
	}
}

func (p ProgressBar) View() string {
	var result string
	if p.Label != "" {
		result = lipgloss.NewStyle().Foreground(theme.Text).Render(p.Label) + "  "
	}

	percentWidth := 0
	if p.ShowPercent {
		percentWidth = 6
	}
	barWidth := max(p.Width-lipgloss.Width(result)-percentWidth, 4)

	pct := min(max(p.Percent, 0), 1)
	filled := int(float64(barWidth) * pct)

	fill := theme.ProgressFilled
	if p.LowMark > 0 && pct <= p.LowMark {
		fill = theme.ProgressLow
	}
	result += fill.Render(strings.Repeat(" ", filled)) +
		theme.ProgressEmpty.Render(strings.Repeat(" ", barWidth-filled))

	if p.ShowPercent {
		result += theme.Dimmed.Render(fmt.Sprintf("  %d%%", int(pct*100)))
	}
	return result
}
