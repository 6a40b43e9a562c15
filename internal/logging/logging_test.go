package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetup_JSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	if err := Setup("debug", "json", &buf); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	log.Debug().Str("session", "abc").Msg("loaded")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if entry["session"] != "abc" || entry["message"] != "loaded" || entry["level"] != "debug" {
		t.Errorf("entry = %v", entry)
	}
}

func TestSetup_LevelFilters(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	if err := Setup("warn", "text", &buf); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message written at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message missing")
	}
}

func TestSetup_Invalid(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup("loud", "text", &buf); err == nil {
		t.Error("expected error for bad level")
	}
	if err := Setup("info", "xml", &buf); err == nil {
		t.Error("expected error for bad format")
	}
}
