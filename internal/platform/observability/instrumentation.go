package observability

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Config captures observability toggles.
type Config struct {
	Enabled bool
}

// ShutdownFunc flushes whatever Setup installed.
type ShutdownFunc func(context.Context) error

type hooks struct {
	logger *slog.Logger
	cfg    Config
}

var current atomic.Pointer[hooks]

func loaded() hooks {
	if h := current.Load(); h != nil {
		return *h
	}
	return hooks{}
}

// Setup installs the logger used by spans and metrics. When disabled,
// nothing is logged but the registry keeps counting.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (ShutdownFunc, error) {
	current.Store(&hooks{logger: logger, cfg: cfg})

	if logger != nil {
		logger.InfoContext(ctx, "[OBSERVABILITY] span logging", slog.Bool("enabled", cfg.Enabled))
	}
	return func(ctx context.Context) error {
		if logger == nil || !cfg.Enabled {
			return nil
		}
		snap := Default().Snapshot()
		logger.InfoContext(ctx, "[OBSERVABILITY] final metrics",
			slog.Int("counters", len(snap.Counters)),
			slog.Int("gauges", len(snap.Gauges)),
			slog.Int("timers", len(snap.Timers)),
		)
		return nil
	}, nil
}

// Enabled reports whether span logging is on.
func Enabled() bool {
	return loaded().cfg.Enabled
}

type requestIDKey struct{}

// ContextWithRequestID tags ctx so spans started under it carry the id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the id set by ContextWithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// StartSpan times an operation into the "<component>.<operation>" timer
// and, when enabled, logs its outcome.
func StartSpan(ctx context.Context, component, operation string) (context.Context, func(error)) {
	h := loaded()
	start := time.Now()

	return ctx, func(err error) {
		elapsed := time.Since(start)
		Default().Timer(component+"."+operation, nil).Observe(elapsed)
		if err != nil {
			Default().Counter(component+"."+operation+".errors", nil).Inc()
		}

		if h.logger == nil || !h.cfg.Enabled {
			return
		}
		level := slog.LevelDebug
		attrs := []slog.Attr{
			slog.String("component", component),
			slog.String("operation", operation),
			slog.Duration("duration", elapsed),
		}
		if id := RequestIDFromContext(ctx); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.Any("error", err))
		}
		h.logger.LogAttrs(ctx, level, "span", attrs...)
	}
}

// RecordMetric sets a gauge in the default registry and, when enabled,
// logs the datapoint.
func RecordMetric(ctx context.Context, name string, value float64, labels map[string]string) {
	Default().Gauge(name, labels).Set(value)

	h := loaded()
	if h.logger == nil || !h.cfg.Enabled {
		return
	}
	attrs := make([]slog.Attr, 0, len(labels)+2)
	attrs = append(attrs, slog.String("metric", name), slog.Float64("value", value))
	for k, v := range labels {
		attrs = append(attrs, slog.String(k, v))
	}
	h.logger.LogAttrs(ctx, slog.LevelDebug, "metric", attrs...)
}
