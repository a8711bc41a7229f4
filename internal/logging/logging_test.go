package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record written while debug is off")
	}
	if !strings.Contains(out, "shown") {
		t.Error("info record missing")
	}

	buf.Reset()
	debug := New(&buf, true)
	debug.Debug().Msg("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("debug record missing while debug is on")
	}
}

func TestComponent_AddsField(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(New(&buf, false), "poller")
	logger.Info().Msg("tick")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["component"] != "poller" || rec["app"] != "gridscope" {
		t.Errorf("unexpected fields: %v", rec)
	}
}

func TestOpen_WritesToDir(t *testing.T) {
	dir := t.TempDir()
	logger, closer, err := Open(Options{Dir: dir})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	logger.Info().Msg("hello")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, DefaultFile))
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("log file content = %q", data)
	}
}

func TestSince_UsesGivenClock(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false)
	start := time.Unix(0, 0)
	Since(logger.Info(), start, start.Add(1500*time.Millisecond)).Msg("done")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	// zerolog writes durations in milliseconds by default
	if rec["elapsed"] != float64(1500) {
		t.Errorf("elapsed = %v, want 1500", rec["elapsed"])
	}
}
