package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	uidKey
)

// ContextWithTraceID 写入 trace_id，优先于 span 上下文中的 trace id
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// ContextWithUID 写入发起请求的用户标识
func ContextWithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, uidKey, uid)
}

// contextFields 在 fields 前补上 trace_id、span_id 与 uid
func contextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	out := make([]zap.Field, 0, len(fields)+3)

	traceID, explicit := ctx.Value(traceIDKey).(string)
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !explicit && sc.IsValid() {
		traceID = sc.TraceID().String()
	}
	if traceID != "" {
		out = append(out, zap.String("trace_id", traceID))
	}
	if sc.IsValid() {
		out = append(out, zap.String("span_id", sc.SpanID().String()))
	}
	if uid, _ := ctx.Value(uidKey).(string); uid != "" {
		out = append(out, zap.String("uid", uid))
	}
	return append(out, fields...)
}
