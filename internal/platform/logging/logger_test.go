package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesFileAndConsole(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	logger, err := NewWithConsole(Config{Level: "info", Dir: dir, Filename: "test.log"}, &console)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger.InfoTag("HTTP", "POST %s -> %d", "/api/analyze", 200)
	logger.Debug("hidden at info level")
	logger.Warn("structured", map[string]interface{}{"b": 2, "a": 1})
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "[HTTP] POST /api/analyze -> 200") {
		t.Fatalf("tagged message missing from file: %s", content)
	}
	if strings.Contains(content, "hidden at info level") {
		t.Fatalf("debug message leaked at info level: %s", content)
	}
	if !strings.Contains(content, `"a":1`) || !strings.Contains(content, `"b":2`) {
		t.Fatalf("structured fields missing: %s", content)
	}
	if !strings.Contains(console.String(), "[HTTP] POST /api/analyze -> 200") {
		t.Fatalf("console output missing message: %q", console.String())
	}
}

func TestFormatLog(t *testing.T) {
	tests := []struct {
		tag, msg, want string
	}{
		{"BOOT", "ready", "[BOOT] ready"},
		{"", "ready", "ready"},
		{"BOOT", "[HTTP] already tagged", "[HTTP] already tagged"},
		{" GATE ", "  score  ", "[GATE] score"},
	}
	for _, tt := range tests {
		if got := FormatLog(tt.tag, tt.msg); got != tt.want {
			t.Errorf("FormatLog(%q, %q) = %q, want %q", tt.tag, tt.msg, got, tt.want)
		}
	}
}

func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewWithConsole(Config{Level: "info", Dir: dir, Filename: "server.log"}, nil)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer logger.Close()

	now := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	old := filepath.Join(dir, "server-2026-03-01.log")
	recent := filepath.Join(dir, "server-2026-03-18.log")
	for _, p := range []string{old, recent} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	logger.cleanOldLogs(now)

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be removed", old)
	}
	if _, err := os.Stat(recent); err != nil {
		t.Fatalf("expected %s to be kept: %v", recent, err)
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG").String() != "DEBUG" {
		t.Fatal("DEBUG should map to slog debug")
	}
	if ParseLevel("bogus").String() != "INFO" {
		t.Fatal("unknown level should map to info")
	}
}
