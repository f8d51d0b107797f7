// Package errors 定义带业务码的错误。
// 预定义错误是共享值，附加上下文一律通过 WithError / WithMessage 拿副本。
package errors

import "errors"

type Error struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	HttpCode int    `json:"-"` // 写回 HTTP 响应时的状态码
	Err      error  `json:"-"`
}

// New 创建错误，未给 httpCode 时为 200
func New(code int, message string, httpCode ...int) *Error {
	e := &Error{Code: code, Message: message, HttpCode: 200}
	if len(httpCode) > 0 {
		e.HttpCode = httpCode[0]
	}
	return e
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is 只比较业务码，消息和 cause 不参与
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithError 返回挂上 cause 的副本
func (e *Error) WithError(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// WithMessage 返回替换了消息的副本
func (e *Error) WithMessage(message string) *Error {
	cp := *e
	cp.Message = message
	return &cp
}

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

// CodeOf 取错误链上第一个 *Error 的业务码，没有时为 0
func CodeOf(err error) int {
	if e := (*Error)(nil); errors.As(err, &e) {
		return e.Code
	}
	return 0
}
