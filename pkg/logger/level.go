package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level 与 zapcore.Level 取值一致，调用方不必引入 zapcore
type Level int8

const (
	DebugLevel  = Level(zapcore.DebugLevel)
	InfoLevel   = Level(zapcore.InfoLevel)
	WarnLevel   = Level(zapcore.WarnLevel)
	ErrorLevel  = Level(zapcore.ErrorLevel)
	DPanicLevel = Level(zapcore.DPanicLevel)
	PanicLevel  = Level(zapcore.PanicLevel)
	FatalLevel  = Level(zapcore.FatalLevel)
)

func (l Level) String() string { return zapcore.Level(l).String() }

// ParseLevel 解析配置里的级别名，大小写不敏感，空串视为 info
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return InfoLevel, nil
	case "warning":
		s = "warn"
	}
	zl, err := zapcore.ParseLevel(s)
	if err != nil {
		return InfoLevel, fmt.Errorf("logger: unknown level %q", s)
	}
	return Level(zl), nil
}

func (l Level) toZapLevel() zapcore.Level { return zapcore.Level(l) }

func fromZapLevel(zl zapcore.Level) Level { return Level(zl) }
