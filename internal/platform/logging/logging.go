package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
	// Console overrides the console writer; defaults to stdout.
	Console io.Writer
}

// Logger writes colored lines to the console and JSON lines to a daily
// rotated file when Dir is set.
type Logger struct {
	level  *slog.LevelVar
	slog   *slog.Logger
	file   *rotatingFile
	closed chan struct{}
}

// New creates a Logger from cfg.
func New(cfg Config) (*Logger, error) {
	level := &slog.LevelVar{}
	level.Set(ParseLevel(cfg.Level))

	console := cfg.Console
	if console == nil {
		console = os.Stdout
	}
	handlers := []slog.Handler{newConsoleHandler(console, level)}

	var file *rotatingFile
	if cfg.Dir != "" {
		name := cfg.Filename
		if name == "" {
			name = "server.log"
		}
		var err error
		file, err = openRotatingFile(cfg.Dir, name)
		if err != nil {
			return nil, fmt.Errorf("init log file: %w", err)
		}
		handlers = append(handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}))
	}

	l := &Logger{
		level:  level,
		slog:   slog.New(fanoutHandler{handlers: handlers}),
		file:   file,
		closed: make(chan struct{}),
	}
	if file != nil {
		go file.watch(l.closed, l.slog)
	}
	return l, nil
}

// ParseLevel maps DEBUG/INFO/WARN/ERROR (any case) onto slog levels.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// SetLevel changes the level at runtime.
func (l *Logger) SetLevel(level string) {
	if l == nil {
		return
	}
	l.level.Set(ParseLevel(level))
}

// Slog exposes the structured logger for new integrations.
func (l *Logger) Slog() *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l.slog
}

// Close stops rotation and closes the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	select {
	case <-l.closed:
		return nil
	default:
		close(l.closed)
	}
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func (l *Logger) logf(level slog.Level, msg string, args ...any) {
	if l == nil {
		return
	}
	ctx := context.Background()
	if !l.slog.Enabled(ctx, level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.slog.Log(ctx, level, msg)
}

// logFields writes msg with fields as sanitised structured attributes.
func (l *Logger) logFields(level slog.Level, msg string, fields map[string]any) {
	if l == nil {
		return
	}
	ctx := context.Background()
	if !l.slog.Enabled(ctx, level) {
		return
	}
	l.slog.LogAttrs(ctx, level, msg, Fields(fields)...)
}

func (l *Logger) Debug(msg string, args ...any) { l.logf(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.logf(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logf(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logf(slog.LevelError, msg, args...) }

// FormatLog prefixes message with a single "[TAG]" unless it already has one.
func FormatLog(tag, message string) string {
	tag = strings.TrimSpace(tag)
	message = strings.TrimSpace(message)
	if tag == "" || strings.HasPrefix(message, "[") {
		return message
	}
	return "[" + tag + "] " + message
}

func (l *Logger) DebugTag(tag, msg string, args ...any) { l.Debug(FormatLog(tag, msg), args...) }
func (l *Logger) InfoTag(tag, msg string, args ...any)  { l.Info(FormatLog(tag, msg), args...) }
func (l *Logger) WarnTag(tag, msg string, args ...any)  { l.Warn(FormatLog(tag, msg), args...) }
func (l *Logger) ErrorTag(tag, msg string, args ...any) { l.Error(FormatLog(tag, msg), args...) }

func (l *Logger) DebugFields(msg string, fields map[string]any) {
	l.logFields(slog.LevelDebug, msg, fields)
}
func (l *Logger) InfoFields(msg string, fields map[string]any) {
	l.logFields(slog.LevelInfo, msg, fields)
}
func (l *Logger) WarnFields(msg string, fields map[string]any) {
	l.logFields(slog.LevelWarn, msg, fields)
}
func (l *Logger) ErrorFields(msg string, fields map[string]any) {
	l.logFields(slog.LevelError, msg, fields)
}
