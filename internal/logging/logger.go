// Package logging wraps log/slog with the context-first, error-aware
// signatures used across sitepress.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel is the minimum severity a logger emits.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var slogLevels = [...]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

func (l LogLevel) toSlog() slog.Level {
	if l < LevelDebug || int(l) >= len(slogLevels) {
		return slog.LevelInfo
	}
	return slogLevels[l]
}

// ParseLevel converts a --log-level value into a LogLevel.
func ParseLevel(level string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", level)
}

// Logger is the structured logger handed to every component. Fields are
// alternating key/value pairs; a pair whose key is not a string is dropped.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, err error, msg string, fields ...interface{})
	Error(ctx context.Context, err error, msg string, fields ...interface{})

	With(fields ...interface{}) Logger
	WithComponent(component string) Logger
}

// LoggerConfig selects the level, encoding and destination of a logger.
type LoggerConfig struct {
	Level  LogLevel
	Format string // "json" or "text"
	Output io.Writer
}

// SiteLogger is the slog-backed Logger.
type SiteLogger struct {
	base *slog.Logger
}

// NewLogger builds a logger from cfg. A nil cfg logs text at info level to
// stderr.
func NewLogger(cfg *LoggerConfig) *SiteLogger {
	c := LoggerConfig{Level: LevelInfo, Format: "text", Output: os.Stderr}
	if cfg != nil {
		c = *cfg
		if c.Output == nil {
			c.Output = os.Stderr
		}
	}

	opts := &slog.HandlerOptions{Level: c.Level.toSlog()}
	var h slog.Handler = slog.NewTextHandler(c.Output, opts)
	if c.Format == "json" {
		h = slog.NewJSONHandler(c.Output, opts)
	}
	return &SiteLogger{base: slog.New(h)}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *SiteLogger {
	return NewLogger(&LoggerConfig{Level: LevelError, Output: io.Discard})
}

func (l *SiteLogger) Debug(ctx context.Context, msg string, fields ...interface{}) {
	l.emit(ctx, slog.LevelDebug, nil, msg, fields)
}

func (l *SiteLogger) Info(ctx context.Context, msg string, fields ...interface{}) {
	l.emit(ctx, slog.LevelInfo, nil, msg, fields)
}

func (l *SiteLogger) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.emit(ctx, slog.LevelWarn, err, msg, fields)
}

func (l *SiteLogger) Error(ctx context.Context, err error, msg string, fields ...interface{}) {
	l.emit(ctx, slog.LevelError, err, msg, fields)
}

// With returns a child logger that adds fields to every record.
func (l *SiteLogger) With(fields ...interface{}) Logger {
	return &SiteLogger{base: l.base.With(pairs(fields)...)}
}

// WithComponent returns a child logger tagged with component.
func (l *SiteLogger) WithComponent(component string) Logger {
	return &SiteLogger{base: l.base.With(slog.String("component", component))}
}

func (l *SiteLogger) emit(ctx context.Context, level slog.Level, err error, msg string, fields []interface{}) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.base.Enabled(ctx, level) {
		return
	}
	args := pairs(fields)
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	l.base.Log(ctx, level, msg, args...)
}

// pairs turns key/value fields into slog attributes, skipping a trailing
// key without a value and any non-string key.
func pairs(fields []interface{}) []any {
	attrs := make([]any, 0, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(key, fields[i+1]))
	}
	return attrs
}
