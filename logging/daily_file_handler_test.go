package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDailyFileHandlerWritesAttrs(t *testing.T) {
	dir := t.TempDir()
	h, err := NewDailyFileHandler(dir, "test", &slog.HandlerOptions{Level: slog.LevelDebug})
	if err != nil {
		t.Fatalf("NewDailyFileHandler: %v", err)
	}
	defer h.Close()

	logger := slog.New(h).With("component", "vector_store").WithGroup("index")
	logger.Info("persisted", "chunks", 3)

	name := filepath.Join(dir, "test-"+time.Now().Format("2006-01-02")+".log")
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	line := string(data)
	for _, want := range []string{"INFO", "persisted", "component=vector_store", "index.chunks=3"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}
}

func TestDailyFileHandlerRotates(t *testing.T) {
	dir := t.TempDir()
	h, err := NewDailyFileHandler(dir, "rot", nil)
	if err != nil {
		t.Fatalf("NewDailyFileHandler: %v", err)
	}
	defer h.Close()

	day := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	h.file.mutex.Lock()
	h.file.now = func() time.Time { return day }
	h.file.mutex.Unlock()

	slog.New(h).Info("first")
	day = day.Add(24 * time.Hour)
	slog.New(h).Info("second")

	for _, name := range []string{"rot-2024-03-01.log", "rot-2024-03-02.log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
