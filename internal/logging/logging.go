// Package logging adapts log/slog to gateway.Logger. Grounded on
// AltairaLabs-PromptKit's runtime/logger package (LOG_LEVEL environment
// variable selecting a slog.Level, slog.NewTextHandler to stderr) but
// trimmed from a package-level global logger to one instance per process,
// since this module has exactly one thing that needs a logger: the
// gateway itself.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// SlogLogger adapts a *slog.Logger to gateway.Logger's four-level
// interface.
type SlogLogger struct {
	logger *slog.Logger
}

// New builds a SlogLogger writing text-formatted records to stderr at the
// level named by levelName ("debug", "info", "warn", "error"); an
// unrecognized or empty name defaults to info.
func New(levelName string) *SlogLogger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(levelName),
	})
	return &SlogLogger{logger: slog.New(handler)}
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

func (l *SlogLogger) Debug(msg string, args ...interface{}) { l.logger.Debug(msg, args...) }
func (l *SlogLogger) Info(msg string, args ...interface{})  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...interface{})  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...interface{}) { l.logger.Error(msg, args...) }
