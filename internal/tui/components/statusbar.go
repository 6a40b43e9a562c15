package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/snapdash/internal/tui/theme"
)

// RenderStatusBar renders the bottom status bar: key hints on the left,
// status on the right.
func RenderStatusBar(width int, status string, watching bool) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface)

	left := " [?]help  [+/-]months  [d]egree  [t]rend  [r]eload  [q]uit"
	right := status
	if watching {
		right = "watching · " + right
	}
	right += " "

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	return style.Width(width).Render(left + strings.Repeat(" ", padding) + right)
}
