package roomcast

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tokmz/roomcast/pkg/logger"
)

// Config HTTP 引擎配置。relayd 与 chatstore 共用
type Config struct {
	Mode string // debug, release, test

	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration // hijack 后的 websocket 连接不受此限制
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	ShutdownTimeout time.Duration
	// BeforeShutdown 在 http.Server.Shutdown 之前调用，relayd 在这里关闭所有 websocket
	BeforeShutdown func(ctx context.Context)
	AfterShutdown  func()

	TrustedProxies []string

	// AccessLogSkip 不写访问日志的路径，探活接口放这里
	AccessLogSkip []string

	Logger logger.Logger
}

type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		Mode:            gin.ReleaseMode,
		Addr:            ":8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     time.Minute,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: 10 * time.Second,
		AccessLogSkip:   []string{"/healthz"},
	}
}

func WithMode(mode string) Option {
	return func(c *Config) { c.Mode = mode }
}

func WithAddr(addr string) Option {
	return func(c *Config) { c.Addr = addr }
}

func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) { c.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) { c.WriteTimeout = d }
}

func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) { c.IdleTimeout = d }
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Config) { c.ShutdownTimeout = d }
}

// WithBeforeShutdown 注册关机前回调，ctx 带关机超时
func WithBeforeShutdown(fn func(ctx context.Context)) Option {
	return func(c *Config) { c.BeforeShutdown = fn }
}

func WithAfterShutdown(fn func()) Option {
	return func(c *Config) { c.AfterShutdown = fn }
}

func WithTrustedProxies(proxies ...string) Option {
	return func(c *Config) { c.TrustedProxies = proxies }
}

// WithAccessLogSkip 替换默认的免日志路径列表
func WithAccessLogSkip(paths ...string) Option {
	return func(c *Config) { c.AccessLogSkip = paths }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Config) { c.Logger = l }
}
