package session

import (
	"net/http"
	"time"

	"github.com/tokmz/roomcast/pkg/logger"
)

// Config 会话配置
type Config struct {
	URL    string
	Header http.Header

	// 重连退避：第 n 次失败后等待 min(BackoffBase*n, BackoffMax)
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// MaxAttempts 连续失败超过该次数后放弃重连
	MaxAttempts int

	HandshakeTimeout time.Duration
	// ReadTimeout 收到任何帧或 ping 后重置；超时视为连接断开
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// DedupCapacity 聊天消息去重布隆过滤器容量，0 表示不去重。
	// 过滤器有约万分之一的误判，新消息可能被当作重复丢弃；
	// 记满容量后整体清空，清空前见过的消息再次到达时会重复投递
	DedupCapacity uint

	Logger logger.Logger
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		BackoffBase:      2 * time.Second,
		BackoffMax:       10 * time.Second,
		MaxAttempts:      5,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      75 * time.Second,
		WriteTimeout:     10 * time.Second,
		DedupCapacity:    10000,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	switch {
	case c.URL == "":
		return ErrInvalidConfig.WithMessage("session: url is required")
	case c.BackoffBase <= 0 || c.BackoffMax < c.BackoffBase:
		return ErrInvalidConfig.WithMessage("session: backoff must satisfy 0 < base <= max")
	case c.MaxAttempts < 0:
		return ErrInvalidConfig.WithMessage("session: max attempts must be >= 0")
	case c.ReadTimeout <= 0 || c.WriteTimeout <= 0:
		return ErrInvalidConfig.WithMessage("session: read/write timeout must be positive")
	}
	return nil
}

// Option 配置选项
type Option func(*Config)

// WithURL 设置中继地址
func WithURL(url string) Option {
	return func(c *Config) { c.URL = url }
}

// WithHeader 设置握手请求头
func WithHeader(h http.Header) Option {
	return func(c *Config) { c.Header = h }
}

// WithBackoff 设置退避参数
func WithBackoff(base, max time.Duration, attempts int) Option {
	return func(c *Config) {
		c.BackoffBase = base
		c.BackoffMax = max
		c.MaxAttempts = attempts
	}
}

// WithReadTimeout 设置读超时
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReadTimeout = d }
}

// WithDedupCapacity 设置去重容量。去重是尽力而为：误判会丢掉少量新消息，
// 清空过滤器后旧消息可能重复出现。不能容忍丢消息的调用方传 0 关闭去重
func WithDedupCapacity(n uint) Option {
	return func(c *Config) { c.DedupCapacity = n }
}

// WithLogger 设置日志器
func WithLogger(l logger.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// backoff 第 attempts 次失败后的重连延迟
func (c *Config) backoff(attempts int) time.Duration {
	d := c.BackoffBase * time.Duration(attempts)
	if d > c.BackoffMax {
		return c.BackoffMax
	}
	return d
}
