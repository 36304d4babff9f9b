package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// logTrace copies the active span's ids onto every record.
type logTrace struct {
	next slog.Handler
}

func newLogTrace(next slog.Handler) slog.Handler {
	return &logTrace{next: next}
}

func (h *logTrace) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *logTrace) Handle(ctx context.Context, record slog.Record) error {
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			record.AddAttrs(
				slog.String("trace_id", sc.TraceID().String()),
				slog.String("span_id", sc.SpanID().String()),
			)
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *logTrace) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &logTrace{next: h.next.WithAttrs(attrs)}
}

func (h *logTrace) WithGroup(name string) slog.Handler {
	return &logTrace{next: h.next.WithGroup(name)}
}
