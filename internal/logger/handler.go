package logger

import (
	"context"
	"log/slog"
)

// contextHandler decorates a base handler with the correlation metadata
// carried in the context, so every line logged after intake keeps its rid,
// update identifiers, and handler name without call sites repeating them.
type contextHandler struct {
	base slog.Handler
}

func newContextHandler(base slog.Handler) slog.Handler {
	return &contextHandler{base: base}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if rid := RIDFrom(ctx); rid != "" {
		r.AddAttrs(slog.String("rid", rid))
	}
	if id := UpdateIDFrom(ctx); id != 0 {
		r.AddAttrs(slog.Int("update_id", id))
	}
	if id := UserIDFrom(ctx); id != 0 {
		r.AddAttrs(slog.Int64("user_id", id))
	}
	if id := ChatIDFrom(ctx); id != 0 {
		r.AddAttrs(slog.Int64("chat_id", id))
	}
	if name := HandlerFrom(ctx); name != "" {
		r.AddAttrs(slog.String("handler", name))
	}
	return h.base.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{base: h.base.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{base: h.base.WithGroup(name)}
}
