package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

var (
	// Logger is the global structured logger
	Logger *slog.Logger

	// Verbose enables debug logging
	Verbose bool
)

func init() {
	Logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: slog.LevelInfo,
	}))
}

// ParseLevel converts a textual log level into a slog level.
// Unknown values map to info.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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

// Setup configures the logger based on verbosity and output preferences
func Setup(verbose bool, jsonOutput bool, w io.Writer) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	SetupLevel(level, jsonOutput, w)
}

// SetupLevel configures the logger with an explicit level.
func SetupLevel(level slog.Level, jsonOutput bool, w io.Writer) {
	Verbose = level <= slog.LevelDebug

	if w == nil {
		w = os.Stderr
	}

	if jsonOutput {
		Logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
		return
	}

	Logger = slog.New(tint.NewHandler(w, &tint.Options{
		Level:   level,
		NoColor: w != os.Stderr,
	}))
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

// Info logs an info message
func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Logger.Error(msg, args...)
}

// With returns a logger with additional attributes
func With(args ...any) *slog.Logger {
	return Logger.With(args...)
}

// Writer forwards command output to a logger, one record per line.
type Writer struct {
	logger *slog.Logger
	level  slog.Level
}

// NewWriter returns a Writer logging at debug level. A nil logger uses the global one.
func NewWriter(logger *slog.Logger) *Writer {
	return &Writer{logger: logger, level: slog.LevelDebug}
}

// Write logs each non-empty line of p.
func (w *Writer) Write(p []byte) (int, error) {
	logger := w.logger
	if logger == nil {
		logger = Logger
	}
	for _, line := range strings.Split(string(p), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		logger.Log(context.Background(), w.level, "command output", "line", line)
	}
	return len(p), nil
}
