package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"papermill/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "papermill.log")
	logger, err := New(Options{Level: "info", Format: "json", FilePath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", String("k", "v"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) {
		t.Fatalf("log file missing entry: %s", data)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	var buf strings.Builder
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ctx := services.WithPaperKey(context.Background(), "papers/20260101/a.pdf")
	ctx = services.WithTaskID(ctx, "task-123")

	WithContext(ctx, logger).Info("event")
	out := buf.String()
	if !strings.Contains(out, "paper_key=papers/20260101/a.pdf") {
		t.Fatalf("missing paper key: %s", out)
	}
	if !strings.Contains(out, "task_id=task-123") {
		t.Fatalf("missing task id: %s", out)
	}
}
