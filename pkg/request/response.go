package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Response 已读完的响应
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Request    *http.Request
}

func (r *Response) IsSuccess() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

func (r *Response) IsError() bool { return r.StatusCode >= 400 }

func (r *Response) Unmarshal(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return ErrUnmarshal.WithError(err)
	}
	return nil
}

// raw 供重试判断使用，nil 安全
func (r *Response) raw() *http.Response {
	if r == nil {
		return nil
	}
	return &http.Response{StatusCode: r.StatusCode, Header: r.Headers}
}

const maxErrorBody = 512

// statusError 非信封格式的错误响应，正文截断后放进消息
func statusError(r *Response) error {
	body := r.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return ErrRequestFailed.WithMessage(fmt.Sprintf("HTTP %d %s: %s", r.StatusCode, http.StatusText(r.StatusCode), body))
}
