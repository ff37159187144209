package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_CreatesDirAndWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	log, err := NewLogger(dir, "debug")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("log dir missing: %v", err)
	}

	log.Info("probe_verdict")
	_ = log.Sync()

	b, err := os.ReadFile(filepath.Join(dir, logFile))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"probe_verdict"`) || !strings.Contains(string(b), `"ts":`) {
		t.Fatalf("unexpected log line: %s", b)
	}
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	dir := t.TempDir()
	log, err := NewLogger(dir, "warn")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info("dropped_event")
	log.Warn("kept_event")
	_ = log.Sync()

	b, _ := os.ReadFile(filepath.Join(dir, logFile))
	if strings.Contains(string(b), "dropped_event") || !strings.Contains(string(b), "kept_event") {
		t.Fatalf("level filter not applied: %s", b)
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	if _, err := NewLogger(t.TempDir(), "chatty"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
