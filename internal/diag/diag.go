// Package diag collects the warnings and notes produced during one generation run.
package diag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mark3labs/swagger2client/internal/spec"
)

// Logger is the structured logging surface used across the generator.
// It matches the method set of *slog.Logger so callers may pass one directly.
type Logger interface {
	Debug(msg string, attrs ...any)
	Info(msg string, attrs ...any)
	Warn(msg string, attrs ...any)
	Error(msg string, attrs ...any)
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// NewSlogLogger adapts a *slog.Logger, falling back to slog.Default when nil.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return l
}

// Level is the severity of an Event.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
)

func (l Level) String() string {
	if l == LevelWarn {
		return "warn"
	}
	return "info"
}

// Well-known event codes.
const (
	CodeUnknownShape     = "unknown-shape"
	CodeAllOfBranch      = "allof-branch"
	CodeCircularRef      = "circular-ref"
	CodePathParam        = "path-param"
	CodeDuplicateName    = "duplicate-name"
	CodeFormatter        = "formatter"
	CodeValidation       = "validation"
	CodeUnsupportedMedia = "unsupported-media"
)

// Event is one diagnostic.
type Event struct {
	Level   Level
	Code    string
	Message string
	Origin  spec.Origin
}

func (e Event) String() string {
	if e.Origin.Doc == "" {
		return fmt.Sprintf("[%s] %s: %s", e.Level, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s (%s)", e.Level, e.Code, e.Message, e.Origin)
}

// Collector records events for a single run and mirrors them to a Logger.
// It is safe for concurrent use.
type Collector struct {
	logger Logger

	mu     sync.Mutex
	events []Event
	seen   map[Event]bool
}

// NewCollector returns a Collector logging to l; a nil l discards log output.
func NewCollector(l Logger) *Collector {
	if l == nil {
		l = NopLogger{}
	}
	return &Collector{logger: l, seen: make(map[Event]bool)}
}

func (c *Collector) Logger() Logger { return c.logger }

// Warn records a warning at origin.
func (c *Collector) Warn(code string, origin spec.Origin, format string, args ...any) {
	c.add(Event{Level: LevelWarn, Code: code, Message: fmt.Sprintf(format, args...), Origin: origin})
}

// Info records an informational note at origin.
func (c *Collector) Info(code string, origin spec.Origin, format string, args ...any) {
	c.add(Event{Level: LevelInfo, Code: code, Message: fmt.Sprintf(format, args...), Origin: origin})
}

func (c *Collector) add(e Event) {
	c.mu.Lock()
	if c.seen[e] {
		c.mu.Unlock()
		return
	}
	c.seen[e] = true
	c.events = append(c.events, e)
	c.mu.Unlock()

	attrs := []any{"code", e.Code}
	if e.Origin.Doc != "" {
		attrs = append(attrs, "doc", e.Origin.Doc, "pointer", e.Origin.Pointer)
	}
	if e.Origin.Line > 0 {
		attrs = append(attrs, "line", e.Origin.Line)
	}
	if e.Level == LevelWarn {
		c.logger.Warn(e.Message, attrs...)
	} else {
		c.logger.Debug(e.Message, attrs...)
	}
}

// Events returns the recorded events ordered by document position, so output
// does not depend on goroutine scheduling.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	out := append([]Event(nil), c.events...)
	c.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Origin, out[j].Origin
		if a.Doc != b.Doc {
			return a.Doc < b.Doc
		}
		if a.Pointer != b.Pointer {
			return a.Pointer < b.Pointer
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Warnings returns only warning-level events.
func (c *Collector) Warnings() []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.Level == LevelWarn {
			out = append(out, e)
		}
	}
	return out
}

type ctxKey struct{}

// WithCollector attaches c to ctx.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the Collector attached to ctx, or a discarding one.
func FromContext(ctx context.Context) *Collector {
	if c, ok := ctx.Value(ctxKey{}).(*Collector); ok && c != nil {
		return c
	}
	return NewCollector(nil)
}
