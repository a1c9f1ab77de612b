package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Line is a log record reduced to what a status bar shows.
type Line struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   []slog.Attr
}

// LineCapture is a slog.Handler that keeps only the latest record.
type LineCapture struct {
	level slog.Leveler
	attrs []slog.Attr
	group string
	last  *atomic.Pointer[Line]
}

// Latest receives every INFO+ record of the server logger for the UI status bar.
var Latest = NewLineCapture(slog.LevelInfo)

// NewLineCapture creates a capture that ignores records below level.
func NewLineCapture(level slog.Leveler) *LineCapture {
	return &LineCapture{level: level, last: new(atomic.Pointer[Line])}
}

// Last returns the most recent record and false before the first one.
func (c *LineCapture) Last() (Line, bool) {
	if l := c.last.Load(); l != nil {
		return *l, true
	}
	return Line{}, false
}

// Enabled implements slog.Handler.
func (c *LineCapture) Enabled(_ context.Context, level slog.Level) bool {
	return level >= c.level.Level()
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Handler takes the record by value
func (c *LineCapture) Handle(_ context.Context, r slog.Record) error {
	l := &Line{Time: r.Time, Level: r.Level, Message: r.Message}
	l.Attrs = append(l.Attrs, c.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		l.Attrs = append(l.Attrs, c.qualify(a))
		return true
	})
	c.last.Store(l)
	return nil
}

// WithAttrs implements slog.Handler.
func (c *LineCapture) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *c
	out.attrs = append([]slog.Attr(nil), c.attrs...)
	for _, a := range attrs {
		out.attrs = append(out.attrs, c.qualify(a))
	}
	return &out
}

// WithGroup implements slog.Handler.
func (c *LineCapture) WithGroup(name string) slog.Handler {
	out := *c
	out.group = c.qualifyKey(name)
	return &out
}

func (c *LineCapture) qualify(a slog.Attr) slog.Attr {
	return slog.Attr{Key: c.qualifyKey(a.Key), Value: a.Value.Resolve()}
}

func (c *LineCapture) qualifyKey(k string) string {
	if c.group == "" {
		return k
	}
	return c.group + "." + k
}
