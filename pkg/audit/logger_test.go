package audit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fueltracker/pkg/logger"
)

func init() {
	logger.Init("error")
}

func TestStdoutLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdoutLogger(&Config{Enabled: true, MaskFields: []string{"password"}})
	l.out = &buf
	defer l.Close()

	entry := NewEntry().
		Service("fuel-svc").
		Action(ActionRegister).
		Outcome(OutcomeSuccess).
		Meta("password", "hunter2").
		Build()

	if err := l.Log(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "[AUDIT] ") {
		t.Errorf("expected [AUDIT] prefix, got %q", out)
	}
	if strings.Contains(out, "hunter2") {
		t.Error("password must be masked")
	}
}

func TestStdoutLogger_Disabled(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdoutLogger(&Config{Enabled: false})
	l.out = &buf

	if err := l.Log(context.Background(), NewEntry().Build()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if buf.Len() != 0 {
		t.Error("disabled logger should not write")
	}
}

func TestStdoutLogger_Query(t *testing.T) {
	l := NewStdoutLogger(&Config{Enabled: true})

	if _, err := l.Query(context.Background(), &QueryFilter{}); err == nil {
		t.Error("expected error for query on stdout logger")
	}
}

func TestFileLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")

	l, err := NewFileLogger(&Config{
		Enabled:     true,
		Backend:     "file",
		FilePath:    logPath,
		MaxSize:     1,
		BufferSize:  100,
		FlushPeriod: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("failed to create file logger: %v", err)
	}

	for _, action := range []Action{ActionCreate, ActionUpdate, ActionDelete} {
		entry := NewEntry().Service("fuel-svc").Action(action).Outcome(OutcomeSuccess).Build()
		if err := l.Log(context.Background(), entry); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}

	if err := l.Close(); err != nil {
		t.Errorf("failed to close logger: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %s", len(lines), data)
	}
	if !strings.Contains(lines[2], `"action":"DELETE"`) {
		t.Errorf("unexpected last line %s", lines[2])
	}
}

func TestFileLogger_BadPath(t *testing.T) {
	_, err := NewFileLogger(&Config{Enabled: true, FilePath: filepath.Join(t.TempDir(), "missing", "dir", "audit.log")})
	if err == nil {
		t.Error("expected error for unwritable path")
	}
}

func TestFileLogger_Query(t *testing.T) {
	l, err := NewFileLogger(&Config{Enabled: true, FilePath: filepath.Join(t.TempDir(), "audit.log")})
	if err != nil {
		t.Fatalf("failed to create file logger: %v", err)
	}
	defer l.Close()

	if _, err := l.Query(context.Background(), &QueryFilter{}); err == nil {
		t.Error("expected error for query on file logger")
	}
}

func TestMemoryLogger(t *testing.T) {
	l := NewMemoryLogger(3)
	ctx := context.Background()

	for i, action := range []Action{ActionCreate, ActionUpdate, ActionDelete, ActionImport} {
		entry := NewEntry().Action(action).User("u1", "").Build()
		entry.Timestamp = time.Date(2024, 3, 1, 0, i, 0, 0, time.UTC)
		l.Log(ctx, entry)
	}

	all, err := l.Query(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries after trimming, got %d", len(all))
	}
	if all[0].Action != ActionImport {
		t.Errorf("newest entry should come first, got %s", all[0].Action)
	}

	updates, _ := l.Query(ctx, &QueryFilter{Action: ActionUpdate})
	if len(updates) != 1 {
		t.Errorf("expected 1 update, got %d", len(updates))
	}

	page, _ := l.Query(ctx, &QueryFilter{Offset: 1, Limit: 1})
	if len(page) != 1 || page[0].Action != ActionDelete {
		t.Errorf("unexpected page %v", page)
	}

	empty, _ := l.Query(ctx, &QueryFilter{Offset: 10})
	if len(empty) != 0 {
		t.Errorf("expected empty page, got %d", len(empty))
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		want    string
		wantErr bool
	}{
		{"nil config", nil, "*audit.StdoutLogger", false},
		{"disabled", &Config{Enabled: false}, "*audit.NoopLogger", false},
		{"stdout", &Config{Enabled: true, Backend: "stdout"}, "*audit.StdoutLogger", false},
		{"memory", &Config{Enabled: true, Backend: "memory"}, "*audit.MemoryLogger", false},
		{"noop", &Config{Enabled: true, Backend: "noop"}, "*audit.NoopLogger", false},
		{"unknown", &Config{Enabled: true, Backend: "kafka"}, "*audit.StdoutLogger", false},
		{"file", &Config{Enabled: true, Backend: "file", FilePath: filepath.Join(t.TempDir(), "a.log")}, "*audit.FileLogger", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			defer l.Close()

			if got := fmt.Sprintf("%T", l); got != tt.want {
				t.Errorf("New() type = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNoopLogger(t *testing.T) {
	l := &NoopLogger{}
	ctx := context.Background()

	if err := l.Log(ctx, NewEntry().Build()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	entries, err := l.Query(ctx, &QueryFilter{})
	if err != nil || entries != nil {
		t.Errorf("expected nil result, got %v, %v", entries, err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGlobalLogger(t *testing.T) {
	original := Get()
	defer SetGlobal(original)

	mem := NewMemoryLogger(10)
	SetGlobal(mem)

	if Get() != Logger(mem) {
		t.Fatal("expected global logger to be set")
	}

	if err := Log(context.Background(), NewEntry().Action(ActionLogin).Build()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	entries, _ := mem.Query(context.Background(), nil)
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}
}

func TestNew_ExcludedRoutes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "memory"
	cfg.ExcludeRoutes = []string{"GET /api/v1/records"}

	l, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()
	_ = l.Log(ctx, NewEntry().Route("GET /api/v1/records").Action(ActionExport).Build())
	_ = l.Log(ctx, NewEntry().Route("POST /api/v1/records").Action(ActionCreate).Build())

	entries, _ := l.Query(ctx, nil)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Route != "POST /api/v1/records" {
		t.Errorf("unexpected route %q", entries[0].Route)
	}
}
