package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/snapdash/internal/tui/theme"
)

// Tab represents a single tab in the tab bar.
type Tab struct {
	Name string
	Key  string
}

// Tabs defines all available tabs.
var Tabs = []Tab{
	{Name: "Current Month", Key: "1"},
	{Name: "Previous Month", Key: "2"},
	{Name: "Table", Key: "3"},
}

// TabVisualWidth returns the rendered width of a tab: one cell of padding
// either side, plus the "[n]" shortcut hint when inactive.
func TabVisualWidth(tab Tab, active bool) int {
	w := lipgloss.Width(tab.Name) + 2
	if !active {
		w += lipgloss.Width(tab.Key) + 2
	}
	return w
}

// RenderTabBar renders the tab bar with the given active index, tabs
// separated by one column.
func RenderTabBar(activeIdx int, width int) string {
	t := theme.Active

	activeStyle := lipgloss.NewStyle().
		Foreground(t.AccentBright).
		Background(t.SurfaceHover).
		Bold(true).
		Padding(0, 1)

	inactiveStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Surface).
		Padding(0, 1)

	keyStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)
	sepStyle := lipgloss.NewStyle().Foreground(t.Border).Background(t.Surface)

	parts := make([]string, len(Tabs))
	for i, tab := range Tabs {
		if i == activeIdx {
			parts[i] = activeStyle.Render(tab.Name)
			continue
		}
		parts[i] = inactiveStyle.Render(tab.Name + keyStyle.Render("["+tab.Key+"]"))
	}

	row := strings.Join(parts, sepStyle.Render("│"))
	return lipgloss.NewStyle().Background(t.Surface).Width(width).Render(row)
}

// TabIdxByKey returns the tab index for a given key press, or -1.
func TabIdxByKey(key string) int {
	for i, tab := range Tabs {
		if tab.Key == key {
			return i
		}
	}
	return -1
}
