// Package logger 基于 zap 的结构化日志，级别可在运行时调整
package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 日志接口，...Context 方法会带上 trace_id、span_id 与 uid
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	DPanic(msg string, fields ...zap.Field)
	Panic(msg string, fields ...zap.Field)
	Fatal(msg string, fields ...zap.Field)

	DebugContext(ctx context.Context, msg string, fields ...zap.Field)
	InfoContext(ctx context.Context, msg string, fields ...zap.Field)
	WarnContext(ctx context.Context, msg string, fields ...zap.Field)
	ErrorContext(ctx context.Context, msg string, fields ...zap.Field)

	With(fields ...zap.Field) Logger
	Named(name string) Logger
	WithContext(ctx context.Context) Logger
	Sync() error
	SetLevel(level Level)
	Level() Level
}

// zapLogger 子 Logger 与父共享同一个 AtomicLevel
type zapLogger struct {
	z     *zap.Logger
	level zap.AtomicLevel
}

// New 按配置创建 Logger，config 为 nil 时输出 json 到标准输出
func New(config *Config) (Logger, error) {
	c := Config{}
	if config != nil {
		c = *config
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}

	level := zap.NewAtomicLevelAt(c.Level.toZapLevel())
	core, err := buildCore(&c, level)
	if err != nil {
		return nil, err
	}

	var opts []zap.Option
	if c.EnableCaller {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}
	if c.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	return &zapLogger{z: zap.New(core, opts...), level: level}, nil
}

func NewWithOptions(opts ...Option) (Logger, error) {
	c := &Config{}
	for _, opt := range opts {
		opt(c)
	}
	return New(c)
}

// NewProduction json、info 级别、error 以上带堆栈
func NewProduction() (Logger, error) {
	return NewWithOptions(WithLevel(InfoLevel), WithFormat(JSONFormat), WithStacktrace(true))
}

// NewDevelopment console、debug 级别、带调用位置
func NewDevelopment() (Logger, error) {
	return NewWithOptions(WithLevel(DebugLevel), WithFormat(ConsoleFormat), WithCaller(true), WithStacktrace(true))
}

// Nop 丢弃所有输出，各组件未注入 Logger 时的默认值
func Nop() Logger {
	return &zapLogger{z: zap.NewNop(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

// NewWithCore 包装现成的 zapcore.Core，测试里配合 zaptest/observer
func NewWithCore(core zapcore.Core) Logger {
	return &zapLogger{z: zap.New(core), level: zap.NewAtomicLevelAt(zapcore.DebugLevel)}
}

func (l *zapLogger) Debug(msg string, fields ...zap.Field)  { l.z.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...zap.Field)   { l.z.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...zap.Field)   { l.z.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...zap.Field)  { l.z.Error(msg, fields...) }
func (l *zapLogger) DPanic(msg string, fields ...zap.Field) { l.z.DPanic(msg, fields...) }
func (l *zapLogger) Panic(msg string, fields ...zap.Field)  { l.z.Panic(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...zap.Field)  { l.z.Fatal(msg, fields...) }

func (l *zapLogger) DebugContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.z.Debug(msg, contextFields(ctx, fields)...)
}

func (l *zapLogger) InfoContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.z.Info(msg, contextFields(ctx, fields)...)
}

func (l *zapLogger) WarnContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.z.Warn(msg, contextFields(ctx, fields)...)
}

func (l *zapLogger) ErrorContext(ctx context.Context, msg string, fields ...zap.Field) {
	l.z.Error(msg, contextFields(ctx, fields)...)
}

func (l *zapLogger) With(fields ...zap.Field) Logger {
	return &zapLogger{z: l.z.With(fields...), level: l.level}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{z: l.z.Named(name), level: l.level}
}

// WithContext 把 ctx 中的 trace_id、uid 固化为子 Logger 的字段
func (l *zapLogger) WithContext(ctx context.Context) Logger {
	return l.With(contextFields(ctx, nil)...)
}

func (l *zapLogger) Sync() error { return l.z.Sync() }

func (l *zapLogger) SetLevel(level Level) { l.level.SetLevel(level.toZapLevel()) }

func (l *zapLogger) Level() Level { return fromZapLevel(l.level.Level()) }
