package tracing

import (
	"slices"
	"time"

	"github.com/tokmz/roomcast/pkg/errors"
)

var ErrInvalidConfig = errors.New(3003, "tracing: invalid config", 500)

// Config 对应配置文件中的 tracing 段
type Config struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	Environment    string `mapstructure:"environment"`

	// ExporterType otlp | otlpgrpc | stdout | noop
	ExporterType     string            `mapstructure:"exporter_type"`
	ExporterEndpoint string            `mapstructure:"exporter_endpoint"`
	ExporterHeaders  map[string]string `mapstructure:"exporter_headers"`
	Insecure         bool              `mapstructure:"insecure"`

	// SamplingType always | never | ratio | parent_based，留空读 OTEL_TRACES_SAMPLER
	SamplingType string  `mapstructure:"sampling_type"`
	SamplingRate float64 `mapstructure:"sampling_rate"`

	ResourceAttributes map[string]string `mapstructure:"resource_attributes"`

	BatchTimeout       time.Duration `mapstructure:"batch_timeout"`
	MaxExportBatchSize int           `mapstructure:"max_export_batch_size"`
	MaxQueueSize       int           `mapstructure:"max_queue_size"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:            true,
		ServiceName:        "roomcast",
		ServiceVersion:     "1.0.0",
		Environment:        "development",
		ExporterType:       ExporterStdout,
		SamplingType:       "parent_based",
		SamplingRate:       1.0,
		BatchTimeout:       5 * time.Second,
		MaxExportBatchSize: 512,
		MaxQueueSize:       2048,
	}
}

func (c *Config) Validate() error {
	switch {
	case c.ServiceName == "":
		return ErrInvalidConfig.WithMessage("tracing: service_name is required")
	case c.SamplingRate < 0 || c.SamplingRate > 1:
		return ErrInvalidConfig.WithMessage("tracing: sampling_rate must be within [0, 1]")
	case !slices.Contains([]string{ExporterOTLP, ExporterOTLPGRPC, ExporterStdout, ExporterNoop}, c.ExporterType):
		return ErrInvalidConfig.WithMessage("tracing: unsupported exporter " + c.ExporterType)
	case !slices.Contains([]string{"", "always", "never", "ratio", "parent_based"}, c.SamplingType):
		return ErrInvalidConfig.WithMessage("tracing: unsupported sampling_type " + c.SamplingType)
	}
	return nil
}
