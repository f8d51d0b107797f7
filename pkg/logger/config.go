package logger

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Format 编码格式
type Format string

const (
	JSONFormat    Format = "json"
	ConsoleFormat Format = "console"
)

func (f Format) String() string { return string(f) }

// IsValid 仅支持 json 与 console
func (f Format) IsValid() bool {
	return f == JSONFormat || f == ConsoleFormat
}

// Hook 写入前回调，返回错误时该条日志不落盘
type Hook interface {
	OnWrite(entry zapcore.Entry, fields []zapcore.Field) error
}

// 轮转与采样的缺省值，零值字段回落到这里
const (
	defaultMaxSizeMB       = 100
	defaultMaxAgeDays      = 30
	defaultMaxBackups      = 10
	defaultSampleInitial   = 100
	defaultSampleThereafer = 100
)

// RotateConfig lumberjack 文件轮转
type RotateConfig struct {
	Filename   string
	MaxSize    int // MB
	MaxAge     int // 天
	MaxBackups int
	Compress   bool
}

func (r RotateConfig) withDefaults() RotateConfig {
	if r.MaxSize <= 0 {
		r.MaxSize = defaultMaxSizeMB
	}
	if r.MaxAge <= 0 {
		r.MaxAge = defaultMaxAgeDays
	}
	if r.MaxBackups <= 0 {
		r.MaxBackups = defaultMaxBackups
	}
	return r
}

// SamplingConfig 每秒前 Initial 条全部保留，之后每 Thereafter 条保留一条。
// 中继在高并发下的逐帧 debug 日志依赖它限流
type SamplingConfig struct {
	Initial    int
	Thereafter int
}

func (s SamplingConfig) withDefaults() SamplingConfig {
	if s.Initial <= 0 {
		s.Initial = defaultSampleInitial
	}
	if s.Thereafter <= 0 {
		s.Thereafter = defaultSampleThereafer
	}
	return s
}

// Config 日志配置。未指定任何输出时写到标准输出
type Config struct {
	Level  Level
	Format Format

	Console bool
	File    string
	Rotate  *RotateConfig

	Sampling *SamplingConfig

	EnableCaller     bool
	EnableStacktrace bool

	EncoderConfig *zapcore.EncoderConfig
	Hooks         []Hook
}

func (c *Config) normalize() error {
	if c.Format == "" {
		c.Format = JSONFormat
	}
	if !c.Format.IsValid() {
		return fmt.Errorf("logger: unknown format %q", c.Format)
	}
	if c.Rotate != nil {
		r := c.Rotate.withDefaults()
		if r.Filename == "" {
			r.Filename = c.File
		}
		if r.Filename == "" {
			return fmt.Errorf("logger: rotate output needs a filename")
		}
		c.Rotate = &r
	}
	if c.Sampling != nil {
		s := c.Sampling.withDefaults()
		c.Sampling = &s
	}
	if !c.Console && c.File == "" && c.Rotate == nil {
		c.Console = true
	}
	return nil
}
