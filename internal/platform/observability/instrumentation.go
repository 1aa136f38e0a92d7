package observability

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

type requestIDKey struct{}

// WithRequestID stores the request id that spans and metrics are tagged with.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Enabled reports whether observability has been toggled on.
func Enabled() bool {
	_, cfg := currentLogger()
	return cfg.Enabled
}

// StartSpan logs the start of an operation and returns a func that logs its end.
// Failed spans are logged at error level even when observability is disabled.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	logger, cfg := currentLogger()
	if logger == nil {
		return ctx, func(error) {}
	}

	start := time.Now()
	base := []slog.Attr{
		slog.String("component", component),
		slog.String("operation", operation),
	}
	if id := RequestID(ctx); id != "" {
		base = append(base, slog.String("request_id", id))
	}
	if cfg.Enabled {
		logger.LogAttrs(ctx, slog.LevelDebug, "obs span start", base...)
	}

	return ctx, func(err error) {
		if err == nil && !cfg.Enabled {
			return
		}
		level := slog.LevelDebug
		attrs := append([]slog.Attr{slog.Duration("duration", time.Since(start))}, base...)
		if err != nil {
			level = slog.LevelError
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		logger.LogAttrs(ctx, level, "obs span end", attrs...)
	}
}

// RecordMetric emits a metric datapoint via the configured logger.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	logger, cfg := currentLogger()
	if logger == nil || !cfg.Enabled {
		return
	}

	attrs := []slog.Attr{
		slog.String("metric", name),
		slog.Float64("value", value),
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.String(k, labels[k]))
	}

	logger.LogAttrs(ctx, slog.LevelDebug, "obs metric", attrs...)
}
