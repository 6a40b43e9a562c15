package tui

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestWatchTargets(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.json")

	targets := watchTargets([]string{file, "-", filepath.Join(dir, "b.json")})
	names, ok := targets[dir]
	if !ok || len(targets) != 1 {
		t.Fatalf("targets = %v, want only %s", targets, dir)
	}
	if !names["a.json"] || !names["b.json"] {
		t.Errorf("names = %v", names)
	}

	if !relevant(targets, fsnotify.Event{Name: file, Op: fsnotify.Write}) {
		t.Error("write to watched file not relevant")
	}
	if relevant(targets, fsnotify.Event{Name: filepath.Join(dir, "c.json"), Op: fsnotify.Write}) {
		t.Error("write to sibling file reported")
	}
	if relevant(targets, fsnotify.Event{Name: file, Op: fsnotify.Chmod}) {
		t.Error("chmod reported")
	}

	whole := watchTargets([]string{dir, file})
	if whole[dir] != nil {
		t.Errorf("directory target narrowed to %v", whole[dir])
	}
}

func TestWaitForChange(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "payload.json")
	if err := os.WriteFile(file, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}

	msg := startWatchCmd([]string{file})()
	started, ok := msg.(watchStartedMsg)
	if !ok {
		t.Fatalf("startWatchCmd = %T, want watchStartedMsg", msg)
	}
	defer func() { _ = started.watcher.Close() }()

	done := make(chan any, 1)
	go func() { done <- waitForChangeCmd(started.watcher, []string{file})() }()

	if err := os.WriteFile(file, []byte(`{"snapshots":[]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-done:
		changed, ok := got.(FileChangedMsg)
		if !ok {
			t.Fatalf("msg = %T, want FileChangedMsg", got)
		}
		if filepath.Base(changed.Path) != "payload.json" {
			t.Errorf("Path = %s", changed.Path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}
