package logger

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var defaultEncoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "level",
	NameKey:        "logger",
	CallerKey:      "caller",
	FunctionKey:    zapcore.OmitKey,
	MessageKey:     "msg",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.LowercaseLevelEncoder,
	EncodeTime:     zapcore.ISO8601TimeEncoder,
	EncodeDuration: zapcore.StringDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// buildCore 组装 encoder、输出、采样与钩子
func buildCore(c *Config, level zap.AtomicLevel) (zapcore.Core, error) {
	sink, err := openSinks(c)
	if err != nil {
		return nil, err
	}

	ec := defaultEncoderConfig
	if c.EncoderConfig != nil {
		ec = *c.EncoderConfig
	}
	enc := zapcore.NewJSONEncoder(ec)
	if c.Format == ConsoleFormat {
		enc = zapcore.NewConsoleEncoder(ec)
	}

	core := zapcore.NewCore(enc, sink, level)
	if len(c.Hooks) > 0 {
		core = &hookCore{Core: core, hooks: c.Hooks}
	}
	// 采样在外层，被丢弃的条目不会触发钩子
	if s := c.Sampling; s != nil {
		core = zapcore.NewSamplerWithOptions(core, time.Second, s.Initial, s.Thereafter)
	}
	return core, nil
}

func openSinks(c *Config) (zapcore.WriteSyncer, error) {
	var sinks []zapcore.WriteSyncer
	if c.Console {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}
	switch {
	case c.Rotate != nil:
		r := c.Rotate
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   r.Filename,
			MaxSize:    r.MaxSize,
			MaxAge:     r.MaxAge,
			MaxBackups: r.MaxBackups,
			Compress:   r.Compress,
			LocalTime:  true,
		}))
	case c.File != "":
		f, _, err := zap.Open(c.File)
		if err != nil {
			return nil, fmt.Errorf("logger: open %s: %w", c.File, err)
		}
		sinks = append(sinks, f)
	}
	if len(sinks) == 0 {
		return nil, fmt.Errorf("logger: no output configured")
	}
	return zapcore.NewMultiWriteSyncer(sinks...), nil
}

// hookCore 写入前依次调用钩子
type hookCore struct {
	zapcore.Core
	hooks []Hook
}

func (c *hookCore) With(fields []zapcore.Field) zapcore.Core {
	return &hookCore{Core: c.Core.With(fields), hooks: c.hooks}
}

func (c *hookCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(entry.Level) {
		return ce
	}
	return ce.AddCore(entry, c)
}

func (c *hookCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	for _, h := range c.hooks {
		if err := h.OnWrite(entry, fields); err != nil {
			return err
		}
	}
	return c.Core.Write(entry, fields)
}
