package request

import "github.com/tokmz/roomcast/pkg/errors"

// 4000 段
var (
	ErrRequestFailed = errors.New(4001, "request: round trip failed", 502)
	ErrTimeout       = errors.New(4002, "request: timed out", 504)
	ErrMarshal       = errors.New(4003, "request: encode body", 500)
	ErrUnmarshal     = errors.New(4004, "request: decode response", 502)
	ErrMaxRetry      = errors.New(4005, "request: retries exhausted", 502)
	ErrInvalidURL    = errors.New(4006, "request: invalid url", 400)
)
