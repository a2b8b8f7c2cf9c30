package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json"}, &buf)

	l.Debug("hidden")
	l.Info("record created", "station", "エネオス")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if entry["msg"] != "record created" || entry["station"] != "エネオス" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Format: "text"}, &buf)
	l.Debug("statistics computed", "records", 3)

	if !strings.Contains(buf.String(), "records=3") {
		t.Errorf("text output missing attribute: %q", buf.String())
	}
}

func TestInitWithConfig(t *testing.T) {
	for _, cfg := range []Config{
		{Level: "info", Format: "json", Output: "stdout"},
		{Level: "debug", Format: "text", Output: "stderr"},
	} {
		InitWithConfig(cfg)
		if Log == nil {
			t.Fatalf("InitWithConfig(%+v) left Log nil", cfg)
		}
		if slog.Default() != Log {
			t.Error("slog.Default should be replaced")
		}
	}
}

func TestInitWithConfig_FileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "test.log")

	InitWithConfig(Config{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logPath,
		MaxSize:  1,
	})
	Log.Info("written to file")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file not created: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file content = %q", string(data))
	}
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	reqLogger := New(Config{Format: "json"}, &buf).With("request_id", "req-1")

	ctx := IntoContext(context.Background(), reqLogger)
	if FromContext(ctx) != reqLogger {
		t.Error("FromContext should return the stored logger")
	}

	WithContext(ctx, "user_id", "u-1").Info("hello")
	if !strings.Contains(buf.String(), `"request_id":"req-1"`) || !strings.Contains(buf.String(), `"user_id":"u-1"`) {
		t.Errorf("missing context fields: %s", buf.String())
	}
}

func TestFromContext_Fallback(t *testing.T) {
	Discard()
	if FromContext(context.Background()) != Log {
		t.Error("FromContext without logger should return global Log")
	}
	//nolint:staticcheck // nil context is handled explicitly
	if FromContext(nil) != Log {
		t.Error("FromContext(nil) should return global Log")
	}
}

func TestHelpers(t *testing.T) {
	Discard()

	Debug("debug message", "key", "value")
	Info("info message", "key", "value")
	Warn("warn message", "key", "value")
	Error("error message", "key", "value")

	if WithRequestID("req-123") == nil {
		t.Error("WithRequestID should return logger")
	}
	if WithService("fuel-svc") == nil {
		t.Error("WithService should return logger")
	}
}
