package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// SlogLogger implements application.Logger on top of log/slog.
// Messages are printf-formatted before they reach the handler.
type SlogLogger struct {
	logger *slog.Logger
}

// Options selects the handler
type Options struct {
	Format string // "text" or "json"
	Debug  bool
}

// New creates a logger writing to w
func New(w io.Writer, opts Options) *SlogLogger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return &SlogLogger{logger: slog.New(handler)}
}

// With returns a logger that tags every record with the component name
func (l *SlogLogger) With(component string) *SlogLogger {
	return &SlogLogger{logger: l.logger.With("component", component)}
}

// Slog exposes the underlying logger
func (l *SlogLogger) Slog() *slog.Logger {
	return l.logger
}

// Info logs an informational message
func (l *SlogLogger) Info(msg string, args ...interface{}) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs a recoverable problem
func (l *SlogLogger) Warn(msg string, args ...interface{}) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs an error message
func (l *SlogLogger) Error(msg string, args ...interface{}) {
	l.log(slog.LevelError, msg, args...)
}

// Debug logs a debug message
func (l *SlogLogger) Debug(msg string, args ...interface{}) {
	l.log(slog.LevelDebug, msg, args...)
}

func (l *SlogLogger) log(level slog.Level, msg string, args ...interface{}) {
	ctx := context.Background()
	if !l.logger.Enabled(ctx, level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.logger.Log(ctx, level, msg)
}
