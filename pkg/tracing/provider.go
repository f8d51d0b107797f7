package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
)

// NewTracerProvider 创建 TracerProvider 并设为全局，同时安装 W3C tracecontext
// 与 baggage 传播器。Enabled 为 false 时仍然创建，但导出器换成 noop，
// span 上下文照常生成，日志里的 trace_id 不受影响
func NewTracerProvider(cfg *Config) (*sdktrace.TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := *cfg
	if !c.Enabled {
		c.ExporterType = ExporterNoop
	}

	ctx := context.Background()
	exporter, err := newExporter(ctx, &c)
	if err != nil {
		return nil, ErrInvalidConfig.WithError(err)
	}
	res, err := newResource(ctx, &c)
	if err != nil {
		return nil, ErrInvalidConfig.WithError(err)
	}

	var batch []sdktrace.BatchSpanProcessorOption
	if c.BatchTimeout > 0 {
		batch = append(batch, sdktrace.WithBatchTimeout(c.BatchTimeout))
	}
	if c.MaxExportBatchSize > 0 {
		batch = append(batch, sdktrace.WithMaxExportBatchSize(c.MaxExportBatchSize))
	}
	if c.MaxQueueSize > 0 {
		batch = append(batch, sdktrace.WithMaxQueueSize(c.MaxQueueSize))
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter, batch...),
	}
	// 未指定采样方式时交给 SDK 读取 OTEL_TRACES_SAMPLER
	if s := newSampler(&c); s != nil {
		opts = append(opts, sdktrace.WithSampler(s))
	}
	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	mu.Lock()
	provider = tp
	mu.Unlock()
	return tp, nil
}

func newSampler(c *Config) sdktrace.Sampler {
	switch c.SamplingType {
	case "always":
		return sdktrace.AlwaysSample()
	case "never":
		return sdktrace.NeverSample()
	case "ratio":
		return sdktrace.TraceIDRatioBased(c.SamplingRate)
	case "parent_based":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SamplingRate))
	}
	return nil
}

// newResource service.name 等来自配置，OTEL_RESOURCE_ATTRIBUTES 中的同名键优先
func newResource(ctx context.Context, c *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(c.ServiceName),
		semconv.ServiceVersion(c.ServiceVersion),
	}
	if c.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(c.Environment))
	}
	for k, v := range c.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
}

// Shutdown 刷出缓冲的 span 并关闭全局 provider，未初始化时直接返回
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider = nil
	mu.Unlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// GetTracerProvider 最近一次 NewTracerProvider 创建的 provider
func GetTracerProvider() *sdktrace.TracerProvider {
	mu.Lock()
	defer mu.Unlock()
	return provider
}
