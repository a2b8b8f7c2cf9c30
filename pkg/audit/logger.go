package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"fueltracker/pkg/logger"
)

// StdoutLogger writes one JSON line per entry to a writer (stdout by default).
type StdoutLogger struct {
	config *Config
	out    io.Writer
	mu     sync.Mutex
}

// NewStdoutLogger creates a StdoutLogger.
func NewStdoutLogger(cfg *Config) *StdoutLogger {
	return &StdoutLogger{config: cfg, out: os.Stdout}
}

func (l *StdoutLogger) Log(_ context.Context, entry *Entry) error {
	if !l.config.Enabled {
		return nil
	}
	l.config.Mask(entry.Metadata)

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = fmt.Fprintln(l.out, "[AUDIT]", string(data))
	return err
}

func (l *StdoutLogger) Query(_ context.Context, _ *QueryFilter) ([]*Entry, error) {
	return nil, fmt.Errorf("query not supported for stdout logger")
}

func (l *StdoutLogger) Close() error {
	return nil
}

// FileLogger writes entries asynchronously to a size-rotated file.
type FileLogger struct {
	config *Config
	file   io.WriteCloser
	writer *bufio.Writer
	mu     sync.Mutex
	buffer chan *Entry
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewFileLogger opens the rotated file and starts the background writer.
func NewFileLogger(cfg *Config) (*FileLogger, error) {
	if cfg.FilePath == "" {
		cfg.FilePath = "audit.log"
	}

	// Проверяем, что файл доступен на запись, до передачи его lumberjack
	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	f.Close()

	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	l := &FileLogger{
		config: cfg,
		file:   rotating,
		writer: bufio.NewWriter(rotating),
		buffer: make(chan *Entry, bufferSize),
		done:   make(chan struct{}),
	}

	l.wg.Add(1)
	go l.processLoop()

	return l, nil
}

// Log queues the entry. When the buffer is full the entry is written synchronously.
func (l *FileLogger) Log(_ context.Context, entry *Entry) error {
	if !l.config.Enabled {
		return nil
	}
	l.config.Mask(entry.Metadata)

	select {
	case l.buffer <- entry:
		return nil
	default:
		return l.writeEntry(entry)
	}
}

func (l *FileLogger) Query(_ context.Context, _ *QueryFilter) ([]*Entry, error) {
	return nil, fmt.Errorf("query not implemented for file logger")
}

// Close stops the background writer, drains the buffer and closes the file.
func (l *FileLogger) Close() error {
	close(l.done)
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()

drain:
	for {
		select {
		case entry := <-l.buffer:
			if err := l.writeEntryUnsafe(entry); err != nil {
				logger.Log.Warn("Failed to write audit entry during shutdown", "error", err)
			}
		default:
			break drain
		}
	}

	if err := l.writer.Flush(); err != nil {
		logger.Log.Warn("Failed to flush audit writer", "error", err)
	}
	return l.file.Close()
}

func (l *FileLogger) processLoop() {
	defer l.wg.Done()

	flushPeriod := l.config.FlushPeriod
	if flushPeriod <= 0 {
		flushPeriod = 5 * time.Second
	}

	ticker := time.NewTicker(flushPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case entry := <-l.buffer:
			if err := l.writeEntry(entry); err != nil {
				logger.Log.Warn("Failed to write audit entry", "error", err)
			}
		case <-ticker.C:
			l.flush()
		}
	}
}

func (l *FileLogger) writeEntry(entry *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeEntryUnsafe(entry)
}

// writeEntryUnsafe assumes the caller holds the mutex.
func (l *FileLogger) writeEntryUnsafe(entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = l.writer.Write(append(data, '\n'))
	return err
}

func (l *FileLogger) flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writer.Flush(); err != nil {
		logger.Log.Warn("Failed to flush audit writer", "error", err)
	}
}

// MemoryLogger keeps entries in memory and supports Query.
// Used by the CLI session and tests.
type MemoryLogger struct {
	mu      sync.RWMutex
	entries []*Entry
	limit   int
}

// NewMemoryLogger creates a MemoryLogger keeping at most limit newest entries.
func NewMemoryLogger(limit int) *MemoryLogger {
	if limit <= 0 {
		limit = 10000
	}
	return &MemoryLogger{limit: limit}
}

func (l *MemoryLogger) Log(_ context.Context, entry *Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	if over := len(l.entries) - l.limit; over > 0 {
		l.entries = slices.Delete(l.entries, 0, over)
	}
	return nil
}

// Query returns matching entries, newest first.
func (l *MemoryLogger) Query(_ context.Context, filter *QueryFilter) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*Entry
	for i := len(l.entries) - 1; i >= 0; i-- {
		if filter.Matches(l.entries[i]) {
			out = append(out, l.entries[i])
		}
	}

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(out) {
				return nil, nil
			}
			out = out[filter.Offset:]
		}
		if filter.Limit > 0 && len(out) > filter.Limit {
			out = out[:filter.Limit]
		}
	}
	return out, nil
}

func (l *MemoryLogger) Close() error { return nil }

// New returns a Logger for the configured backend.
func New(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if !cfg.Enabled {
		return &NoopLogger{}, nil
	}

	var l Logger
	switch cfg.Backend {
	case "file":
		fl, err := NewFileLogger(cfg)
		if err != nil {
			return nil, err
		}
		l = fl
	case "memory":
		l = NewMemoryLogger(cfg.BufferSize)
	case "noop":
		return &NoopLogger{}, nil
	case "stdout", "":
		l = NewStdoutLogger(cfg)
	default:
		logger.Log.Warn("Unknown audit backend, using stdout", "backend", cfg.Backend)
		l = NewStdoutLogger(cfg)
	}

	if len(cfg.ExcludeRoutes) > 0 {
		return &routeFilter{Logger: l, cfg: cfg}, nil
	}
	return l, nil
}

// routeFilter drops entries whose route is listed in Config.ExcludeRoutes.
type routeFilter struct {
	Logger
	cfg *Config
}

func (f *routeFilter) Log(ctx context.Context, entry *Entry) error {
	if entry != nil && f.cfg.Excluded(entry.Route) {
		return nil
	}
	return f.Logger.Log(ctx, entry)
}

// NoopLogger discards all entries.
type NoopLogger struct{}

func (l *NoopLogger) Log(_ context.Context, _ *Entry) error { return nil }

func (l *NoopLogger) Query(_ context.Context, _ *QueryFilter) ([]*Entry, error) {
	return nil, nil
}

func (l *NoopLogger) Close() error { return nil }

var (
	globalLogger Logger = &NoopLogger{}
	globalMu     sync.RWMutex
)

// SetGlobal sets the global audit logger instance.
func SetGlobal(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Get returns the global audit logger.
func Get() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// Log records an entry using the global audit logger.
func Log(ctx context.Context, entry *Entry) error {
	return Get().Log(ctx, entry)
}
