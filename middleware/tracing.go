package middleware

import (
	"fmt"
	"strings"

	"github.com/tokmz/roomcast"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig 链路追踪中间件配置
type TracingConfig struct {
	// TracerName Tracer 名称（默认 "roomcast.http"）
	TracerName string

	// SpanNameFormatter 自定义 Span 名称格式
	SpanNameFormatter func(c *roomcast.Context) string

	// ExcludePaths 排除的路径（不追踪）
	ExcludePaths []string
}

// DefaultTracingConfig 返回默认配置
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		TracerName: "roomcast.http",
		SpanNameFormatter: func(c *roomcast.Context) string {
			route := c.FullPath()
			if route == "" {
				route = c.Request().URL.Path
			}
			return fmt.Sprintf("%s %s", c.Request().Method, route)
		},
	}
}

// Tracing 创建链路追踪中间件
// 从请求头提取上游 TraceContext，创建 Server Span，并把 trace_id 写入 Context
// websocket 升级请求的 Span 在升级完成时结束，不覆盖连接生命周期
func Tracing(cfgs ...*TracingConfig) roomcast.HandlerFunc {
	cfg := DefaultTracingConfig()
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
	}
	if cfg.SpanNameFormatter == nil {
		cfg.SpanNameFormatter = DefaultTracingConfig().SpanNameFormatter
	}

	skipMap := make(map[string]bool, len(cfg.ExcludePaths))
	for _, path := range cfg.ExcludePaths {
		skipMap[path] = true
	}

	return func(c *roomcast.Context) {
		req := c.Request()
		if skipMap[req.URL.Path] {
			c.Next()
			return
		}

		// 每次请求时获取，Provider 可能在中间件创建之后才初始化
		tracer := otel.Tracer(cfg.TracerName)
		propagator := otel.GetTextMapPropagator()

		ctx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))

		attrs := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(req.Method),
			semconv.URLPath(req.URL.Path),
			semconv.ServerAddress(req.Host),
			semconv.UserAgentOriginalKey.String(req.UserAgent()),
			attribute.String("http.client_ip", c.ClientIP()),
		}
		if route := c.FullPath(); route != "" {
			attrs = append(attrs, semconv.HTTPRouteKey.String(route))
		}
		upgrade := strings.EqualFold(req.Header.Get("Upgrade"), "websocket")
		if upgrade {
			attrs = append(attrs, attribute.Bool("roomcast.websocket_upgrade", true))
		}

		ctx, span := tracer.Start(ctx, cfg.SpanNameFormatter(c),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		roomcast.SetContextTraceID(c, span.SpanContext().TraceID().String())
		c.SetRequestContext(ctx)

		if !upgrade {
			// 响应头必须在 handler 写出之前注入
			propagator.Inject(ctx, propagation.HeaderCarrier(c.Writer().Header()))
		}

		c.Next()

		status := c.Writer().Status()
		span.SetAttributes(semconv.HTTPResponseStatusCodeKey.Int(status))
		if status >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", status))
		}
	}
}
