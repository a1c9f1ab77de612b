// Package logging configures slog for the server: a log file per stream,
// INFO+ echoed to the console and the latest line kept for the UI.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"flyover/pkg/config"
)

// RequestLogger receives one line per HTTP request. Nil until Init.
var RequestLogger *slog.Logger

// Init installs the server logger as slog's default and creates
// RequestLogger. Files from the previous run are kept as <name>.old.
// The returned func closes both files.
func Init(cfg *config.LogConfig) (func(), error) {
	EnableTrace = cfg.Trace

	server, err := openLog(cfg.Server.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to setup server logger: %w", err)
	}
	requests, err := openLog(cfg.Requests.Path)
	if err != nil {
		server.Close()
		return nil, fmt.Errorf("failed to setup requests logger: %w", err)
	}

	level := ParseLevel(cfg.Server.Level)
	slog.SetDefault(slog.New(fanout{
		textHandler(server, level, level == slog.LevelDebug),
		textHandler(os.Stdout, max(level, slog.LevelInfo), false),
		Latest,
	}))
	RequestLogger = slog.New(textHandler(requests, ParseLevel(cfg.Requests.Level), false))

	return func() {
		if err := errors.Join(server.Close(), requests.Close()); err != nil {
			fmt.Fprintf(os.Stderr, "closing logs: %v\n", err)
		}
	}, nil
}

// ParseLevel maps a config level name onto slog, defaulting to INFO.
// TRACE is DEBUG plus log.trace.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openLog rotates path to path.old and opens a fresh file.
func openLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		old := path + ".old"
		_ = os.Remove(old)
		_ = os.Rename(path, old)
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

func textHandler(w io.Writer, level slog.Level, source bool) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, AddSource: source})
}

// fanout hands every record to each handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

//nolint:gocritic // slog.Handler takes the record by value
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
