// Package logger provides structured logging built on zap.
// It sets up a JSON logger with service-level context and provides
// trace ID propagation through context.Context.
package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded and is
// installed as the zap global, so Named() loggers inherit it.
func Init(service string, level zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stdout"}
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewExample()
		l.Warn("logger: falling back to example config", zap.Error(err))
	}
	l = l.With(zap.String("service", service))

	zap.ReplaceGlobals(l)
	return l
}

// ParseLevel maps a level name (debug, info, warn, error) to a zap level.
// Unknown names resolve to info.
func ParseLevel(s string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// Named returns a component logger derived from the global logger.
func Named(component string) *zap.Logger {
	return zap.L().Named(component)
}

// WithTraceID stores a trace ID in the context for downstream propagation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from context. An explicit WithTraceID value
// wins; otherwise the id of an active OpenTelemetry span is used.
// Returns "" if neither is set.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// GenerateTraceID creates a trace ID from a bot id and timestamp.
// Format: "{bot}-{unixNano}".
func GenerateTraceID(bot string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", bot, ts.UnixNano())
}

// LogWithTrace returns zap fields including the trace ID from context.
// Usage: log.Info("msg", logger.LogWithTrace(ctx)...)
func LogWithTrace(ctx context.Context) []zap.Field {
	tid := TraceID(ctx)
	if tid == "" {
		return nil
	}
	return []zap.Field{zap.String("trace_id", tid)}
}
