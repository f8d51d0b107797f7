package request

import (
	"net/http"
	"time"

	"github.com/tokmz/roomcast/pkg/logger"
)

// Config 客户端配置
type Config struct {
	BaseURL      string
	Timeout      time.Duration // 单次尝试的超时，默认 30s
	Header       http.Header   // 每个请求都会带上的头
	Retry        *RetryConfig  // nil 不重试
	Interceptors []Interceptor
	Logger       logger.Logger // 传输失败时记录，nil 不记录
	Tracing      bool          // 为每次尝试创建客户端 span 并注入 traceparent
	Transport    http.RoundTripper

	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:             30 * time.Second,
		Header:              http.Header{"Accept": []string{"application/json"}},
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}
}

func (c *Config) roundTripper() http.RoundTripper {
	rt := c.Transport
	if rt == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConnsPerHost = c.MaxIdleConnsPerHost
		t.IdleConnTimeout = c.IdleConnTimeout
		rt = t
	}
	if c.Tracing {
		rt = &tracingTransport{base: rt}
	}
	return rt
}

// Option 修改 Config
type Option func(*Config)

// WithBaseURL 相对路径会拼接在它后面
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

func WithHeader(key, value string) Option {
	return func(c *Config) { c.Header.Set(key, value) }
}

// WithRetry nil 表示关闭重试
func WithRetry(cfg *RetryConfig) Option {
	return func(c *Config) { c.Retry = cfg }
}

func WithInterceptor(i Interceptor) Option {
	return func(c *Config) { c.Interceptors = append(c.Interceptors, i) }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func WithTracing(enable bool) Option {
	return func(c *Config) { c.Tracing = enable }
}

func WithTransport(t http.RoundTripper) Option {
	return func(c *Config) { c.Transport = t }
}
