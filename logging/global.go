// Package logging provides the process-wide structured logger: text on the console,
// JSON in weekly rotated files.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/giygas/snomed-normalform/config"
)

// Options configures InitLogger
type Options struct {
	Env            config.Environment
	Level          string // LOG_LEVEL override of the console level, empty for the environment default
	Verbose        bool   // only meaningful in the test environment
	RetentionWeeks int
	MaxFileSize    int64
}

type LoggingService struct {
	Logger *slog.Logger
	files  *RotatingLogger
}

var (
	DefaultLoggingService *LoggingService
	mu                    sync.Mutex
)

// InitLogger installs the global logger with development defaults.
// An empty logDir logs to the console only.
func InitLogger(logDir string) {
	InitLoggerWithOptions(logDir, Options{Env: config.EnvDevelopment, RetentionWeeks: 4})
}

// InitLoggerWithOptions installs the global logger writing to the console and to logDir
func InitLoggerWithOptions(logDir string, opts Options) {
	logger, files := newLogger(logDir, opts)

	mu.Lock()
	previous := DefaultLoggingService
	DefaultLoggingService = &LoggingService{Logger: logger, files: files}
	mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	slog.SetDefault(logger)
}

// Close stops log cleanup and closes the current log file
func (s *LoggingService) Close() {
	if s == nil || s.files == nil {
		return
	}
	if err := s.files.Close(); err != nil {
		slog.Warn("Failed to close log file", "error", err)
	}
}

// Shutdown closes the global logger's files, console logging keeps working
func Shutdown() {
	mu.Lock()
	defer mu.Unlock()
	if DefaultLoggingService != nil {
		DefaultLoggingService.Close()
		DefaultLoggingService = nil
	}
}

// ResetForTest installs a logger for a single test and removes it afterwards
func ResetForTest(t testing.TB, logDir string, env config.Environment, level string, retentionWeeks int, maxFileSize int64) {
	t.Helper()
	InitLoggerWithOptions(logDir, Options{Env: env, Level: level, RetentionWeeks: retentionWeeks, MaxFileSize: maxFileSize})
	t.Cleanup(Shutdown)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel picks the console level for env.
// Tests stay quiet unless verbose, whatever LOG_LEVEL says.
func GetConsoleLogLevel(env config.Environment, level string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}
	if level != "" {
		return parseLogLevel(level)
	}
	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel returns the file level, files always keep everything
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if DefaultLoggingService == nil {
		return nil
	}
	return DefaultLoggingService.Logger
}

func fallback(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	if logger := current(); logger != nil {
		logger.Info(msg, args...)
		return
	}
	fallback(slog.LevelInfo).Info(msg, args...)
}

func Error(msg string, args ...any) {
	if logger := current(); logger != nil {
		logger.Error(msg, args...)
		return
	}
	fallback(slog.LevelError).Error(msg, args...)
}

func Warn(msg string, args ...any) {
	if logger := current(); logger != nil {
		logger.Warn(msg, args...)
		return
	}
	fallback(slog.LevelWarn).Warn(msg, args...)
}

// Debug is dropped on the console unless a logger with debug level is installed
func Debug(msg string, args ...any) {
	if logger := current(); logger != nil {
		logger.Debug(msg, args...)
		return
	}
	fallback(slog.LevelInfo).Debug(msg, args...)
}
