package session

import "github.com/tokmz/roomcast/pkg/errors"

// 6000 段错误码：客户端会话
var (
	ErrInvalidConfig   = errors.New(6001, "session: invalid config", 500)
	ErrNotConnected    = errors.New(6002, "session: not connected", 503)
	ErrDial            = errors.New(6003, "session: dial failed", 502)
	ErrTransport       = errors.New(6004, "session: transport failure", 502)
	ErrGaveUp          = errors.New(6005, "session: reconnect attempts exhausted", 503)
	ErrInvalidArgument = errors.New(6006, "session: invalid argument", 400)
)
