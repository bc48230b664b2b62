package welcome

import (
	"charm.land/lipgloss/v2"

	"github.com/lexiworks/lexisurvey/internal/ui/theme"
)

const bannerArt = `╦  ╔═╗═╗ ╦╦╔═╗╦ ╦╦═╗╦  ╦╔═╗╦ ╦
║  ║╣ ╔╩╦╝║╚═╗║ ║╠╦╝╚╗╔╝║╣ ╚╦╝
╩═╝╚═╝╩ ╚═╩╚═╝╚═╝╩╚═ ╚╝ ╚═╝ ╩ `

const bannerCompact = "L E X I S U R V E Y"

// RenderBanner returns the banner, or a one-line fallback on narrow
// terminals.
func RenderBanner(width int) string {
	style := lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true)

	if width < 40 {
		return style.Render(bannerCompact)
	}
	return style.Render(bannerArt)
}
