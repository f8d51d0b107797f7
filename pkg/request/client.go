// Package request 访问 JSON HTTP 接口的客户端：统一响应信封解析、
// 幂等请求的退避重试、拦截器与 OpenTelemetry 客户端 span
package request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Client 可在多个 goroutine 间共享
type Client struct {
	cfg  *Config
	http *http.Client
}

func New(opts ...Option) *Client {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return &Client{cfg: cfg, http: &http.Client{Transport: cfg.roundTripper()}}
}

func (c *Client) Get(path string) *Request    { return c.newRequest(http.MethodGet, path) }
func (c *Client) Post(path string) *Request   { return c.newRequest(http.MethodPost, path) }
func (c *Client) Put(path string) *Request    { return c.newRequest(http.MethodPut, path) }
func (c *Client) Patch(path string) *Request  { return c.newRequest(http.MethodPatch, path) }
func (c *Client) Delete(path string) *Request { return c.newRequest(http.MethodDelete, path) }

func (c *Client) newRequest(method, path string) *Request {
	return &Request{
		client: c,
		ctx:    context.Background(),
		method: method,
		path:   path,
		header: make(http.Header),
		query:  make(map[string][]string),
	}
}

func (c *Client) execute(r *Request) (*Response, error) {
	rc := RetryConfig{MaxAttempts: 1}
	if cfg := r.retry; cfg != nil {
		rc = *cfg
	} else if c.cfg.Retry != nil {
		rc = *c.cfg.Retry
	}
	rc = rc.policy()
	if !rc.allows(r.method) {
		rc.MaxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.attempt(r)
		if attempt >= rc.MaxAttempts || !rc.RetryIf(resp.raw(), err) {
			if err != nil && attempt > 1 {
				return nil, ErrMaxRetry.WithError(err)
			}
			return resp, err
		}

		timer := time.NewTimer(rc.delay(attempt, resp.raw()))
		select {
		case <-r.ctx.Done():
			timer.Stop()
			return nil, ErrTimeout.WithError(r.ctx.Err())
		case <-timer.C:
		}
	}
}

// attempt 一次往返：拦截器、超时、读完响应体
func (c *Client) attempt(r *Request) (*Response, error) {
	timeout := c.cfg.Timeout
	if r.timeout > 0 {
		timeout = r.timeout
	}
	ctx := r.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := r.build(ctx, c.cfg.BaseURL, c.cfg.Header)
	if err != nil {
		return nil, err
	}
	for _, i := range c.cfg.Interceptors {
		if err := i.BeforeRequest(ctx, req); err != nil {
			return nil, ErrRequestFailed.WithError(err)
		}
	}

	start := time.Now()
	httpResp, err := c.http.Do(req)
	if err == nil {
		defer httpResp.Body.Close()
		var body []byte
		if body, err = io.ReadAll(httpResp.Body); err == nil {
			resp := &Response{
				StatusCode: httpResp.StatusCode,
				Headers:    httpResp.Header,
				Body:       body,
				Duration:   time.Since(start),
				Request:    req,
			}
			for _, i := range c.cfg.Interceptors {
				if err := i.AfterResponse(ctx, resp); err != nil {
					return resp, ErrRequestFailed.WithError(err)
				}
			}
			return resp, nil
		}
	}

	if c.cfg.Logger != nil {
		c.cfg.Logger.WarnContext(ctx, "http request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Error(err),
		)
	}
	if ctx.Err() != nil {
		return nil, ErrTimeout.WithError(fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err))
	}
	return nil, ErrRequestFailed.WithError(err)
}
