package logger

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// boundAttr is an attribute added through WithAttrs together with the group
// prefix that was open at the time.
type boundAttr struct {
	prefix string
	attr   slog.Attr
}

// zlHandler adapts the zerolog logger built by this package to the slog
// interface the service code uses. Context fields added with WithRequestID,
// WithLayer and WithTile are folded into every record via FromContext, so
// slog call sites inherit the same request context as direct zerolog ones.
type zlHandler struct {
	zl     *zerolog.Logger
	bound  []boundAttr
	prefix string
}

// NewSlog wraps zl in a slog.Logger.
func NewSlog(zl *zerolog.Logger) *slog.Logger {
	return slog.New(&zlHandler{zl: zl})
}

func (h *zlHandler) Enabled(_ context.Context, level slog.Level) bool {
	return toZerologLevel(level) >= zerolog.GlobalLevel()
}

func toZerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (h *zlHandler) Handle(ctx context.Context, r slog.Record) error {
	ev := FromContext(ctx, h.zl).WithLevel(toZerologLevel(r.Level))
	for _, b := range h.bound {
		ev = appendAttr(ev, b.prefix, b.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		ev = appendAttr(ev, h.prefix, a)
		return true
	})
	ev.Msg(r.Message)
	return nil
}

func (h *zlHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.bound = cp.bound[:len(cp.bound):len(cp.bound)]
	for _, a := range attrs {
		cp.bound = append(cp.bound, boundAttr{prefix: h.prefix, attr: a})
	}
	return &cp
}

// WithGroup qualifies subsequent attribute keys with the group name. The
// zerolog output stays flat, so groups become dotted key prefixes.
func (h *zlHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.prefix = joinKey(h.prefix, name)
	return &cp
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	if key == "" {
		return prefix
	}
	return prefix + "." + key
}

func appendAttr(ev *zerolog.Event, prefix string, a slog.Attr) *zerolog.Event {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		p := joinKey(prefix, a.Key)
		for _, ga := range a.Value.Group() {
			ev = appendAttr(ev, p, ga)
		}
		return ev
	}
	if a.Key == "" {
		return ev
	}
	key := joinKey(prefix, a.Key)
	switch a.Value.Kind() {
	case slog.KindString:
		return ev.Str(key, a.Value.String())
	case slog.KindInt64:
		return ev.Int64(key, a.Value.Int64())
	case slog.KindUint64:
		return ev.Uint64(key, a.Value.Uint64())
	case slog.KindFloat64:
		return ev.Float64(key, a.Value.Float64())
	case slog.KindBool:
		return ev.Bool(key, a.Value.Bool())
	case slog.KindDuration:
		return ev.Dur(key, a.Value.Duration())
	case slog.KindTime:
		return ev.Time(key, a.Value.Time())
	default:
		return ev.Interface(key, a.Value.Any())
	}
}
