package logging

import (
	"context"
	"errors"
	"log/slog"
)

// AttrFunc returns attributes sampled when a record is handled, such as the
// running session and its commit counter.
type AttrFunc func() []slog.Attr

// stamped adds the attributes of an AttrFunc to every record before passing
// it on. Attributes bound with WithAttrs stay on the inner handler.
type stamped struct {
	next  slog.Handler
	attrs AttrFunc
}

// Stamp wraps h so every record carries attrs(). A nil attrs returns h.
func Stamp(h slog.Handler, attrs AttrFunc) slog.Handler {
	if attrs == nil {
		return h
	}
	return &stamped{next: h, attrs: attrs}
}

func (h *stamped) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *stamped) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(h.attrs()...)
	return h.next.Handle(ctx, r)
}

func (h *stamped) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stamped{next: h.next.WithAttrs(attrs), attrs: h.attrs}
}

func (h *stamped) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &stamped{next: h.next.WithGroup(name), attrs: h.attrs}
}

// fanout sends each record to every member enabled for its level
type fanout []slog.Handler

// Fanout combines handlers into one. Nil handlers are skipped. A failing
// member does not keep the record from the others; all errors are joined.
func Fanout(handlers ...slog.Handler) slog.Handler {
	f := make(fanout, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			f = append(f, h)
		}
	}
	return f
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f fanout) each(fn func(slog.Handler) slog.Handler) fanout {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = fn(h)
	}
	return next
}
