// Package logging wires a process-wide slog.Logger with level parsing
// and third-party noise filtering, following the same approach the
// agent runtime this module was adapted from uses for its own CLI.
package logging

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

const modulePrefix = "github.com/kadirpekel/sentinel"

// ParseLevel converts a string log level to slog.Level. Unrecognized
// values fall back to Warn rather than erroring, since log level is
// rarely worth failing startup over.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// filteringHandler suppresses log records emitted from outside this
// module's own packages unless the configured level is Debug, so a
// noisy dependency doesn't drown operator-relevant log lines.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel && h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug || isOwnPackage(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func isOwnPackage(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(fn.Name(), modulePrefix) || strings.Contains(file, "sentinel/")
}

// Init installs a process-wide slog.Logger writing to output at the
// given level, and returns it. Third-party logs below Debug are
// filtered out.
func Init(level slog.Level, output *os.File) *slog.Logger {
	base := slog.NewTextHandler(output, &slog.HandlerOptions{Level: level})
	logger := slog.New(&filteringHandler{handler: base, minLevel: level})
	slog.SetDefault(logger)
	return logger
}
