package tui

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// Editors and exporters often emit several events per save.
const watchDebounce = 150 * time.Millisecond

var errWatcherClosed = errors.New("watcher closed")

// watchTargets maps each watched directory to the file names of interest.
// A nil name set means every file in the directory.
func watchTargets(paths []string) map[string]map[string]bool {
	targets := make(map[string]map[string]bool)
	for _, p := range paths {
		if p == "-" || p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			targets[abs] = nil
			continue
		}
		// Watch the parent so atomic rename-over saves are seen.
		dir := filepath.Dir(abs)
		names, ok := targets[dir]
		if ok && names == nil {
			continue
		}
		if names == nil {
			names = make(map[string]bool)
			targets[dir] = names
		}
		names[filepath.Base(abs)] = true
	}
	return targets
}

func relevant(targets map[string]map[string]bool, ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	names, ok := targets[filepath.Dir(ev.Name)]
	if !ok {
		return false
	}
	return names == nil || names[filepath.Base(ev.Name)]
}

func startWatchCmd(paths []string) tea.Cmd {
	return func() tea.Msg {
		targets := watchTargets(paths)
		if len(targets) == 0 {
			return watchErrMsg{err: errors.New("no watchable payload paths")}
		}
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return watchErrMsg{err: err}
		}
		for dir := range targets {
			if err := w.Add(dir); err != nil {
				_ = w.Close()
				return watchErrMsg{err: err}
			}
		}
		return watchStartedMsg{watcher: w}
	}
}

// waitForChangeCmd blocks until a watched payload changes, then waits for
// the burst of events to settle before reporting it.
func waitForChangeCmd(w *fsnotify.Watcher, paths []string) tea.Cmd {
	if w == nil {
		return nil
	}
	targets := watchTargets(paths)
	return func() tea.Msg {
		var changed string
		var settle <-chan time.Time
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return watchErrMsg{err: errWatcherClosed}
				}
				if relevant(targets, ev) {
					changed = ev.Name
					settle = time.After(watchDebounce)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return watchErrMsg{err: errWatcherClosed}
				}
				return watchErrMsg{err: err}
			case <-settle:
				return FileChangedMsg{Path: changed}
			}
		}
	}
}
