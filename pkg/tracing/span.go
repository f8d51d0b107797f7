package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName 中继与存储服务内部 span 使用的 tracer
const TracerName = "github.com/tokmz/roomcast"

// 业务属性键
const (
	AttrConnID     = attribute.Key("roomcast.conn_id")
	AttrRoomID     = attribute.Key("roomcast.room_id")
	AttrUserID     = attribute.Key("roomcast.user_id")
	AttrMessageID  = attribute.Key("roomcast.message_id")
	AttrRecipients = attribute.Key("roomcast.recipients")
)

// StartSpan 用全局 TracerProvider 开启一个 span
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, opts...)
}

// RecordError 记录错误并把 span 标为失败，err 为 nil 时什么也不做
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
