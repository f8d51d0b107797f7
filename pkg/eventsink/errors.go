package eventsink

import "github.com/tokmz/roomcast/pkg/errors"

// 7000 段错误码：事件导出
var (
	ErrInvalidConfig = errors.New(7001, "eventsink: invalid config", 500)
	ErrConnect       = errors.New(7002, "eventsink: connect broker failed", 502)
	ErrPublish       = errors.New(7003, "eventsink: publish failed", 502)
	ErrClosed        = errors.New(7004, "eventsink: sink closed", 500)
)
