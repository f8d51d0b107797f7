package protocol

import "github.com/tokmz/roomcast/pkg/errors"

var (
	// ErrMalformed 帧不是合法 JSON 或缺少 type
	ErrMalformed = errors.New(2001, "malformed frame", 400)
	// ErrInvalidFrame 帧缺少必填字段
	ErrInvalidFrame = errors.New(2009, "invalid frame", 400)
	// ErrUnknownType 未识别的帧类型
	ErrUnknownType = errors.New(2010, "unknown frame type", 400)
)
