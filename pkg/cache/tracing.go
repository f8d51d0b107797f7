package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tokmz/roomcast/pkg/cache"

// tracedCache 每个操作一个客户端 span。未命中记为 cache.hit=false，不算错误
type tracedCache struct {
	Cache
	tracer trace.Tracer
}

// NewTracing 用全局 TracerProvider 给 c 加上链路追踪
func NewTracing(c Cache) Cache {
	return &tracedCache{Cache: c, tracer: otel.Tracer(tracerName)}
}

func (t *tracedCache) span(ctx context.Context, op string, keys ...string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "cache."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.operation", op),
			attribute.String("cache.key", strings.Join(keys, ",")),
		),
	)
}

func finish(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	return err
}

func (t *tracedCache) Get(ctx context.Context, key string, value any) error {
	ctx, span := t.span(ctx, "get", key)
	err := t.Cache.Get(ctx, key, value)
	span.SetAttributes(attribute.Bool("cache.hit", err == nil))
	if errors.Is(err, ErrCacheNotFound) {
		span.End()
		return err
	}
	return finish(span, err)
}

func (t *tracedCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	ctx, span := t.span(ctx, "set", key)
	span.SetAttributes(attribute.Int64("cache.ttl_ms", ttl.Milliseconds()))
	return finish(span, t.Cache.Set(ctx, key, value, ttl))
}

func (t *tracedCache) Delete(ctx context.Context, keys ...string) error {
	ctx, span := t.span(ctx, "delete", keys...)
	return finish(span, t.Cache.Delete(ctx, keys...))
}

func (t *tracedCache) Exists(ctx context.Context, key string) (bool, error) {
	ctx, span := t.span(ctx, "exists", key)
	ok, err := t.Cache.Exists(ctx, key)
	return ok, finish(span, err)
}

func (t *tracedCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, span := t.span(ctx, "ttl", key)
	d, err := t.Cache.TTL(ctx, key)
	return d, finish(span, err)
}

func (t *tracedCache) Ping(ctx context.Context) error {
	ctx, span := t.span(ctx, "ping")
	return finish(span, t.Cache.Ping(ctx))
}
