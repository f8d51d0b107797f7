package tracing

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// 导出器类型
const (
	ExporterOTLP     = "otlp" // OTLP over HTTP
	ExporterOTLPGRPC = "otlpgrpc"
	ExporterStdout   = "stdout"
	ExporterNoop     = "noop"
)

// endpoint 配置为空时回落到 OTEL_EXPORTER_OTLP_ENDPOINT
func (c *Config) endpoint() string {
	if c.ExporterEndpoint != "" {
		return c.ExporterEndpoint
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
}

func newExporter(ctx context.Context, cfg *Config) (sdktrace.SpanExporter, error) {
	switch cfg.ExporterType {
	case ExporterOTLP:
		var opts []otlptracehttp.Option
		if ep := cfg.endpoint(); ep != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(ep))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(cfg.ExporterHeaders) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(cfg.ExporterHeaders))
		}
		return otlptracehttp.New(ctx, opts...)

	case ExporterOTLPGRPC:
		var opts []otlptracegrpc.Option
		if ep := cfg.endpoint(); ep != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(ep))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		}
		if len(cfg.ExporterHeaders) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.ExporterHeaders))
		}
		return otlptracegrpc.New(ctx, opts...)

	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())

	case ExporterNoop:
		return tracetest.NewNoopExporter(), nil
	}
	return nil, ErrInvalidConfig.WithMessage("tracing: unsupported exporter " + cfg.ExporterType)
}
