package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	logFilePrefix      = "normalform-"
	defaultMaxFileSize = 100 * 1024 * 1024
	cleanupInterval    = 24 * time.Hour
)

// normalform-2026-W42_03.log
var segmentPattern = regexp.MustCompile(`^normalform-\d{4}-W\d{2}_(\d{2})\.log$`)

// RotatingLogger is an io.Writer over weekly log files.
// A week's file is split into numbered segments once it reaches maxFileSize.
type RotatingLogger struct {
	dir         string
	retention   time.Duration
	maxFileSize int64

	mu   sync.Mutex
	file *os.File
	week string
	size int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRotatingLogger creates a rotating logger with the default size limit
func NewRotatingLogger(dir string, retentionWeeks int) *RotatingLogger {
	return NewRotatingLoggerWithSizeLimit(dir, retentionWeeks, defaultMaxFileSize)
}

// NewRotatingLoggerWithSizeLimit creates a rotating logger, a maxFileSize of 0 disables segmenting
func NewRotatingLoggerWithSizeLimit(dir string, retentionWeeks int, maxFileSize int64) *RotatingLogger {
	return &RotatingLogger{
		dir:         dir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
	}
}

// weekKey returns the ISO week of t as YYYY-Www
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Write appends p to the current file, switching files on a new week or when p would overflow it
func (rl *RotatingLogger) Write(p []byte) (int, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	week := weekKey(time.Now())
	full := rl.maxFileSize > 0 && rl.size+int64(len(p)) > rl.maxFileSize
	if rl.file == nil || rl.week != week || full {
		if err := rl.openLocked(week, full && rl.week == week); err != nil {
			return 0, err
		}
	}

	n, err := rl.file.Write(p)
	rl.size += int64(n)
	return n, err
}

// openLocked switches to the file for week. nextSegment forces a new numbered segment.
func (rl *RotatingLogger) openLocked(week string, nextSegment bool) error {
	if rl.file != nil {
		if err := rl.file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
		}
		rl.file = nil
	}

	name := rl.fileFor(week, nextSegment)
	path := filepath.Join(rl.dir, name)
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	var size int64
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}

	rl.file = file
	rl.week = week
	rl.size = size
	return nil
}

// fileFor returns the file to append to: the base file while it has room,
// then the newest segment while it has room, then a new segment.
func (rl *RotatingLogger) fileFor(week string, nextSegment bool) string {
	base := logFilePrefix + week + ".log"
	if !nextSegment && rl.hasRoom(filepath.Join(rl.dir, base)) {
		return base
	}

	last, lastPath := rl.lastSegment(week)
	if last > 0 && !nextSegment && rl.hasRoom(lastPath) {
		return filepath.Base(lastPath)
	}
	return fmt.Sprintf("%s%s_%02d.log", logFilePrefix, week, last+1)
}

func (rl *RotatingLogger) hasRoom(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return rl.maxFileSize == 0 || info.Size() < rl.maxFileSize
}

func (rl *RotatingLogger) lastSegment(week string) (int, string) {
	matches, _ := filepath.Glob(filepath.Join(rl.dir, logFilePrefix+week+"_??.log"))

	last, lastPath := 0, ""
	for _, m := range matches {
		sub := segmentPattern.FindStringSubmatch(filepath.Base(m))
		if len(sub) < 2 {
			continue
		}
		if n, _ := strconv.Atoi(sub[1]); n > last {
			last, lastPath = n, m
		}
	}
	return last, lastPath
}

// cleanupOldLogs removes log files last modified before the retention period
func (rl *RotatingLogger) cleanupOldLogs() (int, error) {
	entries, err := os.ReadDir(rl.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := time.Now().Add(-rl.retention)
	deleted := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(rl.dir, name)); err == nil {
			deleted++
		}
	}
	return deleted, nil
}

// startCleanup removes expired files once a day until Close
func (rl *RotatingLogger) startCleanup() {
	ctx, cancel := context.WithCancel(context.Background())
	rl.cancel = cancel
	rl.done = make(chan struct{})

	go func() {
		defer close(rl.done)
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// console only, the file handler would write back into rl
				if deleted, err := rl.cleanupOldLogs(); err != nil {
					fmt.Fprintf(os.Stderr, "log cleanup failed: %v\n", err)
				} else if deleted > 0 {
					fmt.Fprintf(os.Stdout, "Cleaned up %d old log files\n", deleted)
				}
			}
		}
	}()
}

// Close stops the cleanup goroutine and closes the current file
func (rl *RotatingLogger) Close() error {
	if rl.cancel != nil {
		rl.cancel()
		<-rl.done
		rl.cancel = nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.file == nil {
		return nil
	}
	err := rl.file.Close()
	rl.file = nil
	return err
}

// newLogger builds the console handler and, when logDir is usable, the JSON file handler
func newLogger(logDir string, opts Options) (*slog.Logger, *RotatingLogger) {
	console := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: GetConsoleLogLevel(opts.Env, opts.Level, opts.Verbose),
	})
	if logDir == "" {
		return slog.New(console), nil
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		logger := slog.New(console)
		logger.Error("Failed to create logs directory, logging to console only", "error", err)
		return logger, nil
	}

	retention := opts.RetentionWeeks
	if retention <= 0 {
		retention = 4
	}
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}

	files := NewRotatingLoggerWithSizeLimit(logDir, retention, maxSize)
	files.mu.Lock()
	err := files.openLocked(weekKey(time.Now()), false)
	files.mu.Unlock()
	if err != nil {
		logger := slog.New(console)
		logger.Error("Failed to open log file, logging to console only", "error", err)
		return logger, nil
	}
	files.startCleanup()

	file := slog.NewJSONHandler(files, &slog.HandlerOptions{Level: GetFileLogLevel()})
	return slog.New(&fanoutHandler{handlers: []slog.Handler{console, file}}), files
}

// fanoutHandler passes every record to each handler enabled for its level
type fanoutHandler struct {
	handlers []slog.Handler
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: handlers}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &fanoutHandler{handlers: handlers}
}

var _ io.Writer = (*RotatingLogger)(nil)
