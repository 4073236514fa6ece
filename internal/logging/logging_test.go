package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	if filepath.Base(path) != "codegrip.log" {
		t.Errorf("DefaultLogPath should end with codegrip.log, got: %s", path)
	}
	if !strings.Contains(path, ".codegrip") {
		t.Errorf("DefaultLogPath should live under .codegrip, got: %s", path)
	}
}

func TestDefaultAndDebugConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != "warn" {
		t.Errorf("expected level 'warn', got: %s", cfg.Level)
	}
	if cfg.FilePath != "" {
		t.Errorf("expected no log file by default, got: %s", cfg.FilePath)
	}

	debug := DebugConfig()
	if debug.Level != "debug" {
		t.Errorf("expected level 'debug', got: %s", debug.Level)
	}
	if debug.FilePath != DefaultLogPath() {
		t.Errorf("expected debug logs in %s, got: %s", DefaultLogPath(), debug.FilePath)
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "test.log")

	logger, cleanup, err := Setup(Config{Level: "debug", FilePath: logPath, MaxSizeMB: 1, MaxFiles: 3})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Debug("search_complete", "results", 3)
	cleanup()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if record["msg"] != "search_complete" {
		t.Errorf("expected msg search_complete, got: %v", record["msg"])
	}
	if record["results"] != float64(3) {
		t.Errorf("expected results 3, got: %v", record["results"])
	}
}

func TestSetup_LevelFilters(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: logPath})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept")
	cleanup()

	content, _ := os.ReadFile(logPath)
	if strings.Contains(string(content), "dropped") {
		t.Error("info record written at warn level")
	}
	if !strings.Contains(string(content), "kept") {
		t.Error("warn record missing")
	}
}

func TestSetup_NoOutputs(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "info"})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()
	logger.Info("nowhere")
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"DEBUG", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"}, // defaults to info
	}

	for _, tc := range tests {
		level := LevelFromString(tc.input)
		if level.String() != tc.expected {
			t.Errorf("LevelFromString(%q) = %s, want %s", tc.input, level.String(), tc.expected)
		}
	}
	if ValidLevel("verbose") {
		t.Error("verbose should not be a valid level")
	}
}

func TestRotatingWriter_Rotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	w, err := NewRotatingWriter(logPath, 1, 2)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	chunk := bytes.Repeat([]byte("x"), 600*1024)
	for i := 0; i < 5; i++ {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	for _, p := range []string{logPath, logPath + ".1", logPath + ".2"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s to exist: %v", filepath.Base(p), err)
		}
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Error("expected generations beyond MaxFiles to be removed")
	}

	info, _ := os.Stat(logPath)
	if info.Size() != int64(len(chunk)) {
		t.Errorf("expected current file to hold one chunk, got %d bytes", info.Size())
	}
}

func TestRotatingWriter_SharedFileRotatesOnce(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "shared.log")
	chunk := bytes.Repeat([]byte("x"), 600*1024)

	a, err := NewRotatingWriter(logPath, 1, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer a.Close()
	if _, err := a.Write(chunk); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	// b opens the same file as a second process would
	b, err := NewRotatingWriter(logPath, 1, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer b.Close()

	if _, err := a.Write(chunk); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := b.Write(chunk); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("expected one rotated generation: %v", err)
	}
	if _, err := os.Stat(logPath + ".2"); !os.IsNotExist(err) {
		t.Error("expected the second writer to reuse the rotated file, not rotate again")
	}
	info, _ := os.Stat(logPath)
	if info.Size() != int64(2*len(chunk)) {
		t.Errorf("expected both writers' chunks in the current file, got %d bytes", info.Size())
	}
}

func TestRotatingWriter_CloseTwice(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "test.log"), 1, 2)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("first close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if _, err := w.Write([]byte("late")); err == nil {
		t.Error("expected write after close to fail")
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	w, err := NewRotatingWriter(logPath, 1, 2)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	line := []byte("0123456789\n")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = w.Write(line)
			}
		}()
	}
	wg.Wait()
	_ = w.Close()

	content, _ := os.ReadFile(logPath)
	if len(content) != 8*100*len(line) {
		t.Errorf("expected %d bytes, got %d", 8*100*len(line), len(content))
	}
}
