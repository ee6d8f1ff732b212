// Package logging provides structured logging utilities.
//
// Loggers are dependency-injected, never global: the base logger is
// built in main() and components scope it once at construction time
// with slog.With. When no logger is provided, a discard logger is used.
// Logging is sparse; lifecycle boundaries are the intended log points,
// never the per-record decode loop.
package logging

import (
	"context"
	"log/slog"
	"sync"
)

// discardHandler is a handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that discards all output.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns the provided logger if non-nil, otherwise a discard
// logger. This is the standard pattern for optional logger parameters:
//
//	func New(cfg Config) *Replayer {
//	    logger := logging.Default(cfg.Logger).With("component", "replay")
//	    ...
//	}
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

// ComponentFilterHandler filters records by their "component" attribute,
// allowing per-component log levels on top of a default. Handlers
// derived via WithAttrs/WithGroup share the same level table, so level
// changes apply to already-scoped component loggers.
type ComponentFilterHandler struct {
	inner     slog.Handler
	state     *filterState
	component string // resolved from pre-set attrs, "" if unknown
}

type filterState struct {
	mu           sync.RWMutex
	defaultLevel slog.Level
	levels       map[string]slog.Level
}

// NewComponentFilterHandler wraps inner with per-component filtering at
// the given default level. The inner handler should allow all levels;
// filtering happens here.
func NewComponentFilterHandler(inner slog.Handler, defaultLevel slog.Level) *ComponentFilterHandler {
	return &ComponentFilterHandler{
		inner: inner,
		state: &filterState{
			defaultLevel: defaultLevel,
			levels:       make(map[string]slog.Level),
		},
	}
}

// SetLevel overrides the level for one component.
func (h *ComponentFilterHandler) SetLevel(component string, level slog.Level) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	h.state.levels[component] = level
}

// ClearLevel removes a component's override, restoring the default.
func (h *ComponentFilterHandler) ClearLevel(component string) {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	delete(h.state.levels, component)
}

// Level returns the effective level for a component.
func (h *ComponentFilterHandler) Level(component string) slog.Level {
	h.state.mu.RLock()
	defer h.state.mu.RUnlock()
	if level, ok := h.state.levels[component]; ok {
		return level
	}
	return h.state.defaultLevel
}

// DefaultLevel returns the configured default level.
func (h *ComponentFilterHandler) DefaultLevel() slog.Level {
	h.state.mu.RLock()
	defer h.state.mu.RUnlock()
	return h.state.defaultLevel
}

// Enabled admits anything at or above the most permissive configured
// level; the component check happens in Handle once attrs are visible.
func (h *ComponentFilterHandler) Enabled(_ context.Context, level slog.Level) bool {
	h.state.mu.RLock()
	defer h.state.mu.RUnlock()
	min := h.state.defaultLevel
	for _, l := range h.state.levels {
		if l < min {
			min = l
		}
	}
	return level >= min
}

func (h *ComponentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	component := h.component
	if component == "" {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "component" && a.Value.Kind() == slog.KindString {
				component = a.Value.String()
				return false
			}
			return true
		})
	}
	if r.Level < h.Level(component) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	component := h.component
	for _, a := range attrs {
		if a.Key == "component" && a.Value.Kind() == slog.KindString {
			component = a.Value.String()
		}
	}
	return &ComponentFilterHandler{
		inner:     h.inner.WithAttrs(attrs),
		state:     h.state, // share the level table
		component: component,
	}
}

func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	return &ComponentFilterHandler{
		inner:     h.inner.WithGroup(name),
		state:     h.state,
		component: h.component,
	}
}
