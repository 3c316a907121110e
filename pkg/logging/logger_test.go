package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", DEBUG},
		{"INFO", INFO},
		{"warning", WARN},
		{"error", ERROR},
		{"fatal", FATAL},
		{"garbage", INFO},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WARN, false)
	logger.SetOutput(&buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below WARN should be suppressed, got: %s", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("WARN and above should be logged, got: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO, true)
	logger.SetOutput(&buf)

	logger.Info("structured", map[string]interface{}{"pid": 42})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Level != "INFO" || entry.Message != "structured" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Fields["pid"] != float64(42) {
		t.Errorf("fields = %v", entry.Fields)
	}
}

func TestWithField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(INFO, true)
	logger.SetOutput(&buf)

	child := logger.WithField("component", "prober")
	child.Info("attached")

	if !strings.Contains(buf.String(), "prober") {
		t.Errorf("child logger should carry the field, got: %s", buf.String())
	}

	buf.Reset()
	logger.Info("detached")
	if strings.Contains(buf.String(), "prober") {
		t.Error("parent logger must not inherit the child's field")
	}
}

func TestEnsureSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "nested")

	if err := EnsureSink(dir); err != nil {
		t.Fatalf("EnsureSink failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("sink directory not created: %v", err)
	}

	// Idempotent on an existing directory
	if err := EnsureSink(dir); err != nil {
		t.Errorf("EnsureSink on existing directory failed: %v", err)
	}
}

func TestFileLoggerWritesToSink(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewFileLogger(dir, "warden", INFO, false)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Info("hello sink")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "warden.log"))
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(data), "hello sink") {
		t.Errorf("log file missing entry: %s", data)
	}
}
