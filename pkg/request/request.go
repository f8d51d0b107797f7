package request

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request 单次调用的构建器，body 序列化后缓存，重试时可以重放
type Request struct {
	client  *Client
	ctx     context.Context
	method  string
	path    string
	header  http.Header
	query   url.Values
	body    []byte
	timeout time.Duration
	retry   *RetryConfig
	err     error
}

func (r *Request) SetContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

func (r *Request) SetHeader(key, value string) *Request {
	r.header.Set(key, value)
	return r
}

func (r *Request) SetQuery(key, value string) *Request {
	r.query.Set(key, value)
	return r
}

// SetBody JSON 编码 v，失败推迟到 Do 返回
func (r *Request) SetBody(v any) *Request {
	data, err := json.Marshal(v)
	if err != nil {
		r.err = ErrMarshal.WithError(err)
		return r
	}
	r.body = data
	if r.header.Get("Content-Type") == "" {
		r.header.Set("Content-Type", "application/json")
	}
	return r
}

// SetTimeout 覆盖客户端的单次超时
func (r *Request) SetTimeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// SetRetry 覆盖客户端的重试策略，nil 沿用客户端配置
func (r *Request) SetRetry(cfg *RetryConfig) *Request {
	r.retry = cfg
	return r
}

// Do 发送请求；4xx/5xx 不算错误，由调用方按 Response 判断
func (r *Request) Do() (*Response, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.client.execute(r)
}

// target 拼出完整 URL，绝对地址不拼 BaseURL
func (r *Request) target(base string) (string, error) {
	raw := r.path
	if base != "" && !strings.Contains(raw, "://") {
		raw = strings.TrimRight(base, "/") + "/" + strings.TrimLeft(raw, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL.WithError(err)
	}
	if len(r.query) > 0 {
		q := u.Query()
		for k, vs := range r.query {
			q[k] = append(q[k], vs...)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// build 每次尝试都生成新的 http.Request
func (r *Request) build(ctx context.Context, base string, common http.Header) (*http.Request, error) {
	target, err := r.target(base)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, bytes.NewReader(r.body))
	if err != nil {
		return nil, ErrInvalidURL.WithError(err)
	}
	if r.body == nil {
		req.Body = http.NoBody
		req.ContentLength = 0
	}
	for k, vs := range common {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range r.header {
		req.Header[k] = append([]string(nil), vs...)
	}
	return req, nil
}
