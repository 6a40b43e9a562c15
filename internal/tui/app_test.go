package tui

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/theirongolddev/snapdash/internal/config"
	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/pipeline"
	"github.com/theirongolddev/snapdash/internal/tui/components"
)

func init() {
	lipgloss.SetColorProfile(termenv.TrueColor)
}

const testPayload = `{"snapshots":[
 {"timestamp":"2024-01-15T00:00:00Z","metrics":{"clientcount.current_month_estimate.type.entity":{"key":"clientcount.current_month_estimate.type.entity","value":10,"mode":"write"}}},
 {"timestamp":"2024-02-15T00:00:00Z","metrics":{"clientcount.current_month_estimate.type.entity":{"key":"clientcount.current_month_estimate.type.entity","value":20,"mode":"write"}}},
 {"timestamp":"2024-03-15T00:00:00Z","metrics":{"clientcount.current_month_estimate.type.entity":{"key":"clientcount.current_month_estimate.type.entity","value":30,"mode":"write"}}}
]}`

// newLoadedApp returns an app past loading, with a config on disk so the
// setup form stays closed.
func newLoadedApp(t *testing.T) App {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	if err := config.Save(config.DefaultConfig()); err != nil {
		t.Fatal(err)
	}

	a := NewApp(Options{
		Paths:  []string{"payload.json"},
		Params: model.TrendParams{FuturePeriods: 2, Degree: 1, Enabled: true},
	})
	m, _ := a.Update(tea.WindowSizeMsg{Width: 140, Height: 50})
	result := pipeline.Reduce(pipeline.LoadBytes([]byte(testPayload)), model.DefaultTrackedMetrics)
	m, _ = m.Update(DataLoadedMsg{Result: result})
	return m.(App)
}

func press(t *testing.T, a App, key string) App {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "left":
		msg = tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		msg = tea.KeyMsg{Type: tea.KeyRight}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	m, _ := a.Update(msg)
	return m.(App)
}

func TestDataLoadedBuildsDashboard(t *testing.T) {
	a := newLoadedApp(t)
	if !a.loaded {
		t.Fatal("loaded = false after DataLoadedMsg")
	}
	if len(a.dashboard.Records) != 3 {
		t.Fatalf("len(Records) = %d, want 3", len(a.dashboard.Records))
	}
	s, ok := a.dashboard.SeriesFor("current_month_estimate_entity")
	if !ok {
		t.Fatal("missing entity series")
	}
	if len(s.Points) != 5 {
		t.Errorf("len(Points) = %d, want 5", len(s.Points))
	}
	if a.setupForm != nil {
		t.Error("setup form opened although a config exists")
	}
	if got := len(a.table.Rows()); got != 5 {
		t.Errorf("table rows = %d, want 5 (3 actual + 2 projected)", got)
	}
}

func TestParamKeysRecompute(t *testing.T) {
	a := newLoadedApp(t)

	a = press(t, a, "+")
	if a.params.FuturePeriods != 3 {
		t.Errorf("FuturePeriods = %d, want 3", a.params.FuturePeriods)
	}
	s, _ := a.dashboard.SeriesFor("current_month_estimate_entity")
	if len(s.Points) != 6 {
		t.Errorf("len(Points) = %d, want 6 after +", len(s.Points))
	}

	for range 5 {
		a = press(t, a, "-")
	}
	if a.params.FuturePeriods != 0 {
		t.Errorf("FuturePeriods = %d, want 0 (clamped)", a.params.FuturePeriods)
	}

	a = press(t, a, "d")
	if a.params.Degree != 2 {
		t.Errorf("Degree = %d, want 2", a.params.Degree)
	}
	s, _ = a.dashboard.SeriesFor("current_month_estimate_entity")
	if s.Degree != 2 {
		t.Errorf("series degree = %d, want 2", s.Degree)
	}

	a = press(t, a, "t")
	if a.params.Enabled {
		t.Error("Enabled = true after t")
	}
	if len(a.dashboard.Series) != 0 {
		t.Errorf("len(Series) = %d, want 0 with trendlines off", len(a.dashboard.Series))
	}
}

func TestTabNavigation(t *testing.T) {
	a := newLoadedApp(t)

	a = press(t, a, "3")
	if a.activeTab != tabTable {
		t.Errorf("activeTab = %d, want %d", a.activeTab, tabTable)
	}
	a = press(t, a, "right")
	if a.activeTab != tabCurrent {
		t.Errorf("activeTab = %d, want wrap to %d", a.activeTab, tabCurrent)
	}
	a = press(t, a, "left")
	if a.activeTab != tabTable {
		t.Errorf("activeTab = %d, want wrap to %d", a.activeTab, tabTable)
	}
}

func TestTabAtX(t *testing.T) {
	a := newLoadedApp(t)

	first := components.TabVisualWidth(components.Tabs[0], true)
	second := components.TabVisualWidth(components.Tabs[1], false)

	cases := []struct {
		x    int
		want int
	}{
		{0, 0},
		{first - 1, 0},
		{first, -1}, // separator
		{first + 1, 1},
		{first + 1 + second + 1, 2},
		{1000, -1},
	}
	for _, c := range cases {
		if got := a.tabAtX(c.x); got != c.want {
			t.Errorf("tabAtX(%d) = %d, want %d", c.x, got, c.want)
		}
	}

	m, _ := a.Update(tea.MouseMsg{X: first + 2, Y: 0, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	if got := m.(App).activeTab; got != 1 {
		t.Errorf("activeTab after click = %d, want 1", got)
	}
}

func TestHelpToggle(t *testing.T) {
	a := newLoadedApp(t)

	a = press(t, a, "?")
	if !a.showHelp {
		t.Fatal("showHelp = false after ?")
	}
	if !strings.Contains(a.View(), "Keyboard Shortcuts") {
		t.Error("help view missing title")
	}

	// Any key closes help without acting on it.
	a = press(t, a, "+")
	if a.showHelp {
		t.Error("showHelp = true after a second key")
	}
	if a.params.FuturePeriods != 2 {
		t.Errorf("FuturePeriods = %d, want 2 (key swallowed by help)", a.params.FuturePeriods)
	}
}

func TestViewStates(t *testing.T) {
	a := newLoadedApp(t)

	view := a.View()
	if !strings.Contains(view, "Entity Estimate") {
		t.Error("main view missing metric label")
	}
	if got := lipgloss.Height(view); got != 50 {
		t.Errorf("view height = %d, want 50", got)
	}

	m, _ := a.Update(DataLoadedMsg{Err: errors.New("boom")})
	if !strings.Contains(m.(App).View(), "Could not load payload") {
		t.Error("error view missing")
	}

	m, _ = a.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	if !strings.Contains(m.(App).View(), "too narrow") {
		t.Error("narrow terminal message missing")
	}
}

func TestNoDataMessage(t *testing.T) {
	a := newLoadedApp(t)
	result := pipeline.Reduce(pipeline.LoadBytes([]byte("not json")), model.DefaultTrackedMetrics)
	m, _ := a.Update(DataLoadedMsg{Result: result})
	if !strings.Contains(m.(App).View(), "No data") {
		t.Error("expected No data message")
	}
}

func TestSetupFormOnFirstRun(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	a := NewApp(Options{Paths: []string{"payload.json"}})
	m, _ := a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m, _ = m.Update(DataLoadedMsg{Result: pipeline.Reduce(pipeline.LoadBytes([]byte(testPayload)), nil)})
	if m.(App).setupForm == nil {
		t.Fatal("setup form not opened without a config file")
	}

	// Keys go to the form, not the dashboard.
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if m.(App).setupForm == nil {
		t.Error("q closed the setup form")
	}
}

func TestLoadUsesReductionCache(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(path, []byte(testPayload), 0o600); err != nil {
		t.Fatal(err)
	}
	opts := Options{Paths: []string{path}, Tracked: model.DefaultTrackedMetrics, UseCache: true}

	first := load(opts, nil)
	if first.Err != nil {
		t.Fatalf("load: %v", first.Err)
	}
	if first.Result.CacheHit {
		t.Error("first load hit the cache")
	}
	second := load(opts, nil)
	if second.Err != nil {
		t.Fatalf("load: %v", second.Err)
	}
	if !second.Result.CacheHit {
		t.Error("second load missed the cache")
	}
	if len(second.Result.Records) != 3 {
		t.Errorf("len(Records) = %d, want 3", len(second.Result.Records))
	}
}
