// Package logging provides structured logging for aprs2influxdb.
//
// This package wraps the standard library's log/slog package so every
// component logs the same way. It supports text and JSON output,
// configurable levels and component-based loggers.
//
// Usage:
//
//	// Initialize at startup
//	level, _ := logging.ParseLevel("WARNING")
//	logging.Init(level, false)
//
//	// Get a component logger
//	log := logging.Component("aprsis")
//	log.Info("connected", "server", addr)
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelCritical sits above slog.LevelError for operators that still use
// the CRITICAL level name.
const LevelCritical = slog.Level(12)

// Logger is the global logger instance.
var Logger *slog.Logger

// Init initializes the global logger with the specified level and format.
// If jsonFormat is true, logs are output as JSON; otherwise, human-readable text.
func Init(level slog.Level, jsonFormat bool) {
	InitWriter(os.Stdout, level, jsonFormat)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level slog.Level, jsonFormat bool) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:       level,
		AddSource:   level <= slog.LevelDebug,
		ReplaceAttr: replaceLevelName,
	}

	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

func replaceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
		a.Value = slog.StringValue("CRITICAL")
	}
	return a
}

// ParseLevel maps a level name to a slog.Level. Names are case-insensitive
// and include WARNING and CRITICAL.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	case "CRITICAL", "FATAL":
		return LevelCritical, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
//
// Example:
//
//	log := logging.Component("ingest")
//	log.Info("started") // Output: time=... level=INFO component=ingest msg=started
//
// Component loggers are usually created at package initialization, before
// Init runs, so they resolve the global handler on every record.
func Component(name string) *slog.Logger {
	return slog.New(&lateHandler{attrs: []slog.Attr{slog.String("component", name)}})
}

// lateHandler forwards to the handler of the current global Logger.
type lateHandler struct {
	attrs  []slog.Attr
	groups []string
}

func (h *lateHandler) target() slog.Handler {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	t := Logger.Handler()
	if len(h.attrs) > 0 {
		t = t.WithAttrs(h.attrs)
	}
	for _, g := range h.groups {
		t = t.WithGroup(g)
	}
	return t
}

func (h *lateHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.target().Enabled(ctx, level)
}

func (h *lateHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.target().Handle(ctx, r)
}

func (h *lateHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(h.groups) > 0 {
		return h.target().WithAttrs(attrs)
	}
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &lateHandler{attrs: merged}
}

func (h *lateHandler) WithGroup(name string) slog.Handler {
	groups := append(append([]string(nil), h.groups...), name)
	return &lateHandler{attrs: h.attrs, groups: groups}
}
