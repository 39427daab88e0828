package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Log keys for the active span.
const (
	logKeyTraceID = "trace_id"
	logKeySpanID  = "span_id"
	logKeySampled = "trace_sampled"
)

// traceHandler stamps every record emitted with a span in its context so a
// request's log lines can be joined to its trace.
type traceHandler struct {
	slog.Handler
}

func withTraceContext(h slog.Handler) slog.Handler {
	return traceHandler{Handler: h}
}

func (h traceHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String(logKeyTraceID, sc.TraceID().String()),
			slog.String(logKeySpanID, sc.SpanID().String()),
			slog.Bool(logKeySampled, sc.IsSampled()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return withTraceContext(h.Handler.WithAttrs(attrs))
}

func (h traceHandler) WithGroup(name string) slog.Handler {
	return withTraceContext(h.Handler.WithGroup(name))
}
