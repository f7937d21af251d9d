package logging

import (
	"context"
	"errors"
	"log/slog"
)

// multiHandler fans out log records to multiple handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle offers the record to every enabled sink, even after one fails.
func (h *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}

// levelHandler applies the root level, raised for loggers listed in
// overrides. The logger name is picked up from a LoggerKey attribute added
// with With.
type levelHandler struct {
	next      slog.Handler
	root      slog.Level
	overrides map[string]slog.Level
	name      string
}

func (h *levelHandler) minLevel() slog.Level {
	if lvl, ok := h.overrides[h.name]; ok && lvl > h.root {
		return lvl
	}
	return h.root
}

func (h *levelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel() && h.next.Enabled(ctx, level)
}

func (h *levelHandler) Handle(ctx context.Context, record slog.Record) error {
	return h.next.Handle(ctx, record)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	name := h.name
	for _, a := range attrs {
		if a.Key == LoggerKey {
			name = a.Value.String()
		}
	}
	return &levelHandler{next: h.next.WithAttrs(attrs), root: h.root, overrides: h.overrides, name: name}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{next: h.next.WithGroup(name), root: h.root, overrides: h.overrides, name: h.name}
}
