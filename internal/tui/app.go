// Package tui provides the interactive Bubble Tea dashboard for snapdash.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/theirongolddev/snapdash/internal/cli"
	"github.com/theirongolddev/snapdash/internal/config"
	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/pipeline"
	"github.com/theirongolddev/snapdash/internal/store"
	"github.com/theirongolddev/snapdash/internal/tui/components"
	"github.com/theirongolddev/snapdash/internal/tui/theme"
)

// Options configures a new App.
type Options struct {
	Paths    []string
	Tracked  []model.TrackedMetric
	Params   model.TrendParams
	Watch    bool
	UseCache bool
}

// DataLoadedMsg is sent when the data pipeline finishes.
type DataLoadedMsg struct {
	Result   *pipeline.CachedLoadResult
	Err      error
	LoadTime time.Duration
}

// ProgressMsg reports file parsing progress.
type ProgressMsg struct {
	Current int
	Total   int
}

// FileChangedMsg is sent when a watched payload changes on disk.
type FileChangedMsg struct {
	Path string
}

type watchStartedMsg struct {
	watcher *fsnotify.Watcher
}

type watchErrMsg struct {
	err error
}

// App is the root Bubble Tea model.
type App struct {
	opts Options

	// Data
	result    *pipeline.CachedLoadResult
	dashboard model.Dashboard
	params    model.TrendParams
	loaded    bool
	reloading bool
	loadErr   error
	loadTime  time.Duration
	loadedAt  time.Time

	// UI state
	width     int
	height    int
	activeTab int
	showHelp  bool
	table     table.Model

	// File watch
	watcher  *fsnotify.Watcher
	watchErr error

	// First-run setup (huh form)
	setupForm *huh.Form
	setupVals setupValues
	needSetup bool

	// Loading: channel-based progress subscription
	spinner     spinner.Model
	progress    int
	progressMax int
	loadSub     chan tea.Msg
}

const (
	minTerminalWidth = 80
	compactWidth     = 120
	maxContentWidth  = 180
	minContentHeight = 5
)

// NewApp creates a new TUI app model.
func NewApp(opts Options) App {
	if len(opts.Tracked) == 0 {
		opts.Tracked = model.DefaultTrackedMetrics
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent).Background(theme.Active.Surface)

	needSetup := !config.Exists()
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}

	return App{
		opts:      opts,
		params:    opts.Params.Normalize(),
		spinner:   sp,
		loadSub:   make(chan tea.Msg, 1),
		needSetup: needSetup,
		setupVals: setupValuesFrom(cfg),
	}
}

// Init implements tea.Model.
func (a App) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnableMouseCellMotion,
		loadDataCmd(a.opts, a.loadSub),
		a.spinner.Tick,
	}
	if a.opts.Watch {
		cmds = append(cmds, startWatchCmd(a.opts.Paths))
	}
	return tea.Batch(cmds...)
}

// Close releases the file watcher, if any.
func (a App) Close() error {
	if a.watcher != nil {
		return a.watcher.Close()
	}
	return nil
}

// Params returns the current trend parameters.
func (a App) Params() model.TrendParams {
	return a.params
}

func (a *App) recompute() {
	if a.result == nil {
		a.dashboard = model.Dashboard{}
		return
	}
	a.dashboard = a.result.Build(a.opts.Tracked, a.params)
	a.table = newMonthlyTable(a.dashboard, a.contentWidth(), a.tableHeight())
}

// Update implements tea.Model.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		if a.setupForm != nil {
			a.setupForm = a.setupForm.WithWidth(msg.Width).WithHeight(msg.Height)
		}
		if a.loaded {
			a.table = newMonthlyTable(a.dashboard, a.contentWidth(), a.tableHeight())
		}
		return a, nil

	case tea.MouseMsg:
		if !a.loaded || a.showHelp || a.setupForm != nil {
			return a, nil
		}
		if msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress && msg.Y == 0 {
			if tab := a.tabAtX(msg.X); tab >= 0 {
				a.activeTab = tab
			}
			return a, nil
		}
		if a.activeTab == tabTable {
			switch msg.Button {
			case tea.MouseButtonWheelUp:
				a.table.MoveUp(1)
			case tea.MouseButtonWheelDown:
				a.table.MoveDown(1)
			}
		}
		return a, nil

	case tea.KeyMsg:
		return a.updateKey(msg)

	case DataLoadedMsg:
		a.loaded = true
		a.reloading = false
		a.loadTime = msg.LoadTime
		a.loadedAt = time.Now()
		a.loadErr = msg.Err
		if msg.Err == nil {
			a.result = msg.Result
		}
		a.recompute()

		if a.needSetup && a.setupForm == nil {
			a.setupForm = newSetupForm(&a.setupVals)
			if a.width > 0 {
				a.setupForm = a.setupForm.WithWidth(a.width).WithHeight(a.height)
			}
			return a, a.setupForm.Init()
		}
		return a, nil

	case ProgressMsg:
		a.progress = msg.Current
		a.progressMax = msg.Total
		return a, waitForLoadMsg(a.loadSub)

	case watchStartedMsg:
		a.watcher = msg.watcher
		return a, waitForChangeCmd(a.watcher, a.opts.Paths)

	case watchErrMsg:
		a.watchErr = msg.err
		log.Warn().Err(msg.err).Msg("file watch stopped")
		return a, nil

	case FileChangedMsg:
		cmds := []tea.Cmd{waitForChangeCmd(a.watcher, a.opts.Paths)}
		if !a.reloading {
			a.reloading = true
			cmds = append(cmds, refreshDataCmd(a.opts), a.spinner.Tick)
		}
		return a, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !a.loaded || a.reloading {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}
	return a, nil
}

func (a App) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if key == "ctrl+c" {
		return a, tea.Quit
	}
	if !a.loaded {
		return a, nil
	}
	if a.setupForm != nil {
		return a.updateSetupForm(msg)
	}

	if key == "?" {
		a.showHelp = !a.showHelp
		return a, nil
	}
	if a.showHelp {
		a.showHelp = false
		return a, nil
	}

	switch key {
	case "q":
		return a, tea.Quit
	case "r":
		if a.reloading {
			return a, nil
		}
		a.reloading = true
		return a, tea.Batch(refreshDataCmd(a.opts), a.spinner.Tick)
	case "+", "=":
		a.params.FuturePeriods++
	case "-", "_":
		a.params.FuturePeriods--
	case "d":
		a.params = a.params.NextDegree()
	case "t":
		a.params.Enabled = !a.params.Enabled
	case "left", "h":
		a.activeTab = (a.activeTab - 1 + len(components.Tabs)) % len(components.Tabs)
		return a, nil
	case "right", "l", "tab":
		a.activeTab = (a.activeTab + 1) % len(components.Tabs)
		return a, nil
	default:
		if idx := components.TabIdxByKey(key); idx >= 0 {
			a.activeTab = idx
			return a, nil
		}
		if a.activeTab == tabTable {
			var cmd tea.Cmd
			a.table, cmd = a.table.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	// Parameter change: recompute synchronously from the held reduction.
	a.params = a.params.Normalize()
	a.recompute()
	return a, nil
}

func (a App) updateSetupForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := a.setupForm.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		a.setupForm = f
	}

	switch a.setupForm.State {
	case huh.StateCompleted:
		cfg, err := saveSetupConfig(a.setupVals)
		if err != nil {
			log.Warn().Err(err).Msg("saving setup config")
		}
		a.params = cfg.TrendParams()
		a.recompute()
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	case huh.StateAborted:
		a.needSetup = false
		a.setupForm = nil
		return a, nil
	}
	return a, cmd
}

func (a App) contentWidth() int {
	return min(a.width, maxContentWidth)
}

func (a App) isCompactLayout() bool {
	return a.contentWidth() < compactWidth
}

func (a App) tableHeight() int {
	return max(a.height-8, minContentHeight)
}

// View implements tea.Model.
func (a App) View() string {
	if a.width == 0 {
		return ""
	}
	if a.width < minTerminalWidth {
		return a.viewTooNarrow()
	}
	if !a.loaded {
		return a.viewLoading()
	}
	if a.setupForm != nil {
		return a.setupForm.View()
	}
	if a.showHelp {
		return a.viewHelp()
	}
	return a.viewMain()
}

func (a App) viewTooNarrow() string {
	h := max(a.height, 5)
	msg := fmt.Sprintf(
		"\n  Terminal too narrow (%d cols)\n\n  snapdash needs at least %d columns.\n",
		a.width,
		minTerminalWidth,
	)
	return padHeight(truncateHeight(msg, h), h)
}

func (a App) viewLoading() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(2, 4)

	logoStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	subtitleStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	spinnerStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface)

	var b strings.Builder
	b.WriteString(logoStyle.Render("◈ snapdash"))
	b.WriteString(subtitleStyle.Render(" · Monthly Client Counts"))
	b.WriteString("\n\n")

	b.WriteString(spinnerStyle.Render(a.spinner.View()))
	if a.progressMax > 1 {
		b.WriteString(subtitleStyle.Render(fmt.Sprintf(" Parsing %d payloads\n\n", a.progressMax)))
		barW := max(min(40, a.width-30), 20)
		b.WriteString(components.ProgressBar(float64(a.progress)/float64(a.progressMax), barW))
	} else {
		b.WriteString(subtitleStyle.Render(" Reading " + strings.Join(a.opts.Paths, ", ")))
	}

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewHelp() string {
	t := theme.Active

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.BorderAccent).
		Background(t.Surface).
		Padding(1, 3)

	titleStyle := lipgloss.NewStyle().Foreground(t.AccentBright).Background(t.Surface).Bold(true)
	sectionStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(t.Cyan).Background(t.Surface).Bold(true)
	descStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	dimStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	var b strings.Builder
	b.WriteString(titleStyle.Render("◈ Keyboard Shortcuts"))
	b.WriteString("\n\n")

	sections := []struct {
		title    string
		bindings []struct{ key, desc string }
	}{
		{"Navigation", []struct{ key, desc string }{
			{"1 2 3", "Jump to tab"},
			{"← →", "Previous / Next tab"},
			{"↑ ↓", "Scroll the monthly table"},
		}},
		{"Trendline", []struct{ key, desc string }{
			{"+ -", "More / fewer projected months"},
			{"d", fmt.Sprintf("Cycle degree %d-%d", model.MinDegree, model.MaxDegree)},
			{"t", "Show / hide trendlines"},
		}},
		{"Actions", []struct{ key, desc string }{
			{"r", "Reload payload"},
			{"?", "Toggle help"},
			{"q", "Quit"},
		}},
	}
	for i, sec := range sections {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(sectionStyle.Render(sec.title))
		b.WriteString("\n")
		for _, bind := range sec.bindings {
			fmt.Fprintf(&b, "  %s  %s\n",
				keyStyle.Render(fmt.Sprintf("%-6s", bind.key)),
				descStyle.Render(bind.desc))
		}
	}
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Press any key to close"))

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, cardStyle.Render(b.String()),
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) viewMain() string {
	t := theme.Active
	w := a.width
	cw := a.contentWidth()

	pillStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)
	accentStyle := lipgloss.NewStyle().Foreground(t.Accent).Background(t.Surface).Bold(true)

	trend := "off"
	if a.params.Enabled {
		trend = fmt.Sprintf("degree %d", a.params.Degree)
	}
	pill := pillStyle.Render(" trend ") + accentStyle.Render(trend) +
		pillStyle.Render(" │ projecting ") + accentStyle.Render(fmt.Sprintf("%d months", a.params.FuturePeriods))
	if !a.dashboard.Empty() {
		first, last := a.dashboard.Records[0], a.dashboard.Records[len(a.dashboard.Records)-1]
		pill += pillStyle.Render(" │ ") + accentStyle.Render(cli.FormatMonthShort(first.YearMonth)+" to "+cli.FormatMonthShort(last.YearMonth))
	}
	header := components.RenderTabBar(a.activeTab, w) + "\n" +
		lipgloss.NewStyle().Background(t.Surface).Width(w).Render(pill)

	status := fmt.Sprintf("loaded %s in %.2fs", a.loadedAt.Format("15:04:05"), a.loadTime.Seconds())
	if a.reloading {
		status = a.spinner.View() + " reloading"
	}
	statusBar := components.RenderStatusBar(w, status, a.watcher != nil && a.watchErr == nil)

	contentH := max(a.height-lipgloss.Height(header)-lipgloss.Height(statusBar), minContentHeight)

	var content string
	switch {
	case a.loadErr != nil:
		content = a.renderMessage(cw, "Could not load payload", a.loadErr.Error())
	case a.result != nil && a.result.NoData():
		content = a.renderMessage(cw, "No data", "The payload is not JSON.")
	case a.dashboard.Empty():
		content = a.renderMessage(cw, "Nothing to display", "No snapshot had a readable timestamp.")
	default:
		switch a.activeTab {
		case tabCurrent:
			content = a.renderGroupTab(model.GroupCurrentMonth, cw)
		case tabPrevious:
			content = a.renderGroupTab(model.GroupPreviousMonth, cw)
		case tabTable:
			content = a.renderTableTab(cw)
		}
	}

	content = padHeight(truncateHeight(content, contentH), contentH)
	content = fillLinesWithBackground(content, cw, t.Background)
	content = lipgloss.Place(w, contentH, lipgloss.Center, lipgloss.Top, content,
		lipgloss.WithWhitespaceBackground(t.Background))

	output := lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
	return lipgloss.Place(w, a.height, lipgloss.Left, lipgloss.Top, output,
		lipgloss.WithWhitespaceBackground(t.Background))
}

func (a App) renderMessage(cw int, title, body string) string {
	return "\n" + components.ContentCard(title, body, min(cw, 72))
}

// ─── Helpers ────────────────────────────────────────────────────

// loadDataCmd starts the data loading pipeline in a background goroutine.
// It streams ProgressMsg updates and a final DataLoadedMsg through sub.
func loadDataCmd(opts Options, sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		go func() {
			// Non-blocking send so workers aren't stalled; the next update catches up.
			progressFn := func(current, total int) {
				select {
				case sub <- ProgressMsg{Current: current, Total: total}:
				default:
				}
			}
			sub <- load(opts, progressFn)
		}()
		return <-sub
	}
}

// waitForLoadMsg blocks until the next message arrives from the loader goroutine.
func waitForLoadMsg(sub chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-sub
	}
}

// refreshDataCmd reloads the payload in the background (no progress UI).
func refreshDataCmd(opts Options) tea.Cmd {
	return func() tea.Msg {
		return load(opts, nil)
	}
}

func openCache() (*store.Cache, error) {
	return store.Open(pipeline.CachePath())
}

func load(opts Options, progressFn pipeline.ProgressFunc) DataLoadedMsg {
	start := time.Now()
	if opts.UseCache {
		if cache, err := openCache(); err == nil {
			cr, loadErr := pipeline.LoadWithCache(opts.Paths, opts.Tracked, cache, progressFn)
			_ = cache.Close()
			return DataLoadedMsg{Result: cr, Err: loadErr, LoadTime: time.Since(start)}
		}
	}
	loaded, err := pipeline.Load(opts.Paths, progressFn)
	if err != nil {
		return DataLoadedMsg{Err: err, LoadTime: time.Since(start)}
	}
	return DataLoadedMsg{Result: pipeline.Reduce(loaded, opts.Tracked), LoadTime: time.Since(start)}
}

func truncateHeight(s string, limit int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= limit {
		return s
	}
	return strings.Join(lines[:limit], "\n")
}

func padHeight(s string, h int) string {
	lines := strings.Split(s, "\n")
	if len(lines) >= h {
		return s
	}
	return s + strings.Repeat("\n", h-len(lines))
}

// fillLinesWithBackground pads each line to width w with background color.
func fillLinesWithBackground(s string, w int, bg lipgloss.Color) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = lipgloss.PlaceHorizontal(w, lipgloss.Left, line,
			lipgloss.WithWhitespaceBackground(bg))
	}
	return strings.Join(lines, "\n")
}

// tabAtX returns the tab index at the given X coordinate, or -1 if none.
// Hitboxes use the same widths as RenderTabBar.
func (a App) tabAtX(x int) int {
	pos := 0
	for i, tab := range components.Tabs {
		tabW := components.TabVisualWidth(tab, i == a.activeTab)
		if x >= pos && x < pos+tabW {
			return i
		}
		pos += tabW + 1 // separator
	}
	return -1
}
