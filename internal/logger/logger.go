// Package logger builds slog loggers in JSON or colored text form.
package logger

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel maps "debug", "info", "warn" or "error" to a slog level.
func ParseLevel(logLevel string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "info":
		return slog.LevelInfo, nil
	default:
		return slog.LevelInfo, errors.New("invalid logLevel: " + logLevel)
	}
}

// NewHandler returns a JSON handler (time key renamed to "timestamp") or a
// tint text handler writing to w.
func NewHandler(w io.Writer, level slog.Level, logFormat string) (slog.Handler, error) {
	switch strings.ToLower(strings.TrimSpace(logFormat)) {
	case "json":
		return slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.Attr{Key: "timestamp", Value: a.Value}
				}
				return a
			},
		}), nil
	case "text":
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		}), nil
	default:
		return nil, errors.New("invalid logFormat: " + logFormat)
	}
}

// New builds a logger from level and format names ("info", "debug", "warn",
// "error"; "json" or "text"). It does not touch slog's default logger.
func New(logLevel, logFormat string, w io.Writer) (*slog.Logger, error) {
	if strings.TrimSpace(logLevel) == "" || strings.TrimSpace(logFormat) == "" {
		return nil, errors.New("logLevel and logFormat must not be empty")
	}
	level, err := ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	handler, err := NewHandler(w, level, logFormat)
	if err != nil {
		return nil, err
	}
	return slog.New(handler), nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
