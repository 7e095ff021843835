package common

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel_ToSlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
		name     string
	}{
		{LogLevelError, slog.LevelError, "error"},
		{LogLevelWarn, slog.LevelWarn, "warn"},
		{LogLevelInfo, slog.LevelInfo, "info"},
		{LogLevelDebug, slog.LevelDebug, "debug"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.ToSlogLevel(); got != tt.expected {
				t.Errorf("ToSlogLevel() = %v, want %v", got, tt.expected)
			}
			if got := tt.level.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
		})
	}
}

func TestLogger_ContextAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LogLevelInfo, FormatJSON)

	logger.WithComponent("runner").WithMigration("0003").WithDirection("reverse").Info("state persisted")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid json log line %q: %v", buf.String(), err)
	}
	if rec["component"] != "runner" || rec["migration"] != "0003" || rec["direction"] != "reverse" {
		t.Fatalf("missing context attributes: %v", rec)
	}
	if rec["msg"] != "state persisted" {
		t.Fatalf("unexpected message: %v", rec["msg"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, LogLevelWarn, FormatText)
	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output: %q", out)
	}
	if logger.Level() != LogLevelWarn {
		t.Fatalf("Level() = %v", logger.Level())
	}
}

func TestLogger_Masked(t *testing.T) {
	logger := NewLoggerWithWriter(&bytes.Buffer{}, LogLevelInfo, FormatText)
	cmd := "arangosh --server.password s3cret --server.database test"
	if got := logger.Masked(cmd); strings.Contains(got, "s3cret") {
		t.Fatalf("Masked() leaked password: %q", got)
	}
	logger.EnableMasking(false)
	if got := logger.Masked(cmd); got != cmd {
		t.Fatalf("Masked() with masking disabled = %q", got)
	}
}

func TestGlobalLogger(t *testing.T) {
	original := GetLogger()
	defer SetDefaultLogger(original)

	var buf bytes.Buffer
	SetDefaultLogger(NewLoggerWithWriter(&buf, LogLevelDebug, FormatText))
	LogInfo("info message", "key", "value")
	LogDebug("debug message")
	LogWarn("warn message")
	LogError("error message", errTest("boom"))

	out := buf.String()
	for _, want := range []string{"info message", "debug message", "warn message", "error message", "boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
