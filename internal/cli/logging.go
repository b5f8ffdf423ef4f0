package cli

import (
	"log/slog"
	"os"

	"github.com/clean-dependency-project/hangarpub/internal/logger"
)

// NewLoggers creates default loggers with JSON output.
func NewLoggers(level slog.Level) (*slog.Logger, *slog.Logger) {
	return NewLoggersWithOutputFormat(level, "json")
}

// NewLoggersWithOutputFormat creates loggers in the given log format (json or
// text). Unknown formats fall back to JSON. All logs are sent to stderr to
// keep stdout clean for command output.
func NewLoggersWithOutputFormat(level slog.Level, logFormat string) (*slog.Logger, *slog.Logger) {
	handler, err := logger.NewHandler(os.Stderr, level, logFormat)
	if err != nil {
		handler, _ = logger.NewHandler(os.Stderr, level, "json")
	}

	// Both loggers write to stderr to keep stdout clean for JSON output
	stdout := slog.New(handler)
	stderr := slog.New(handler)

	return stdout, stderr
}

// ParseLogLevelOrDefault parses a log level string or returns info.
func ParseLogLevelOrDefault(levelStr string) slog.Level {
	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}
