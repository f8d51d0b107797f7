package orm

import "github.com/tokmz/roomcast/pkg/errors"

// 5100 段错误码：数据库初始化
var (
	ErrInvalidConfig = errors.New(5101, "orm: invalid config", 500)
	ErrConnect       = errors.New(5102, "orm: connect database failed", 500)
)
