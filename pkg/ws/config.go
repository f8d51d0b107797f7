package ws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tokmz/roomcast/pkg/logger"
)

// Config 中继配置
type Config struct {
	// 连接配置
	MaxConnections   int           // 最大连接数
	HandshakeTimeout time.Duration // 握手超时时间
	MaxMessageSize   int64         // 单帧最大字节数
	WriteTimeout     time.Duration // 单次写超时
	SendQueueSize    int           // 每连接发送队列长度
	MaxInvalidFrames int           // 连续无效帧上限，超过后以 1008 关闭

	// 心跳配置
	HeartbeatInterval time.Duration // 探测周期，错过一个周期即判定死亡

	// 房间配置
	MaxRoomSize  int  // 单房间最大连接数，0 表示不限
	EchoToSender bool // 聊天消息是否回送给发送者

	// 事件总线
	EventWorkers   int
	EventQueueSize int

	// Upgrader 配置
	UpgraderConfig UpgraderConfig

	// 监控与日志
	Metrics Metrics
	Logger  logger.Logger
}

// UpgraderConfig Upgrader 配置
type UpgraderConfig struct {
	ReadBufferSize    int                      // 读缓冲区大小
	WriteBufferSize   int                      // 写缓冲区大小
	CheckOrigin       func(*http.Request) bool // Origin 检查函数
	EnableCompression bool                     // 是否启用压缩
	AllowedOrigins    []string                 // 允许的 Origin 白名单，"*" 允许全部
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		MaxConnections:    10000,
		HandshakeTimeout:  10 * time.Second,
		MaxMessageSize:    64 * 1024, // 64KB
		WriteTimeout:      10 * time.Second,
		SendQueueSize:     256,
		MaxInvalidFrames:  10,
		HeartbeatInterval: 30 * time.Second,
		EchoToSender:      true,
		EventWorkers:      10,
		EventQueueSize:    1000,
		UpgraderConfig: UpgraderConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return ErrInvalidConfig.WithMessage(fmt.Sprintf(format, args...))
	}

	if c.MaxConnections <= 0 {
		return invalid("MaxConnections must be positive, got %d", c.MaxConnections)
	}
	if c.HandshakeTimeout <= 0 {
		return invalid("HandshakeTimeout must be positive, got %v", c.HandshakeTimeout)
	}
	if c.MaxMessageSize <= 0 {
		return invalid("MaxMessageSize must be positive, got %d", c.MaxMessageSize)
	}
	if c.WriteTimeout <= 0 {
		return invalid("WriteTimeout must be positive, got %v", c.WriteTimeout)
	}
	if c.SendQueueSize <= 0 {
		return invalid("SendQueueSize must be positive, got %d", c.SendQueueSize)
	}
	if c.MaxInvalidFrames <= 0 {
		return invalid("MaxInvalidFrames must be positive, got %d", c.MaxInvalidFrames)
	}
	if c.HeartbeatInterval <= 0 {
		return invalid("HeartbeatInterval must be positive, got %v", c.HeartbeatInterval)
	}
	if c.MaxRoomSize < 0 {
		return invalid("MaxRoomSize must not be negative, got %d", c.MaxRoomSize)
	}
	if c.EventWorkers <= 0 || c.EventQueueSize <= 0 {
		return invalid("EventWorkers and EventQueueSize must be positive")
	}
	if c.UpgraderConfig.ReadBufferSize <= 0 {
		return invalid("UpgraderConfig.ReadBufferSize must be positive, got %d", c.UpgraderConfig.ReadBufferSize)
	}
	if c.UpgraderConfig.WriteBufferSize <= 0 {
		return invalid("UpgraderConfig.WriteBufferSize must be positive, got %d", c.UpgraderConfig.WriteBufferSize)
	}
	return nil
}

// Option 配置选项
type Option func(*Config)

// WithMaxConnections 设置最大连接数
func WithMaxConnections(max int) Option {
	return func(c *Config) {
		c.MaxConnections = max
	}
}

// WithHeartbeatInterval 设置心跳间隔
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.HeartbeatInterval = interval
	}
}

// WithMessageSizeLimit 设置单帧大小限制
func WithMessageSizeLimit(size int64) Option {
	return func(c *Config) {
		c.MaxMessageSize = size
	}
}

// WithSendQueueSize 设置每连接发送队列长度
func WithSendQueueSize(size int) Option {
	return func(c *Config) {
		c.SendQueueSize = size
	}
}

// WithWriteTimeout 设置写超时
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.WriteTimeout = d
	}
}

// WithMaxInvalidFrames 设置连续无效帧上限
func WithMaxInvalidFrames(n int) Option {
	return func(c *Config) {
		c.MaxInvalidFrames = n
	}
}

// WithMaxRoomSize 设置单房间最大连接数
func WithMaxRoomSize(n int) Option {
	return func(c *Config) {
		c.MaxRoomSize = n
	}
}

// WithEchoToSender 设置聊天消息是否回送给发送者
func WithEchoToSender(echo bool) Option {
	return func(c *Config) {
		c.EchoToSender = echo
	}
}

// WithEventBus 设置事件总线的 worker 数和队列长度
func WithEventBus(workers, queueSize int) Option {
	return func(c *Config) {
		if workers > 0 {
			c.EventWorkers = workers
		}
		if queueSize > 0 {
			c.EventQueueSize = queueSize
		}
	}
}

// WithCheckOrigin 设置 Origin 检查函数
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(c *Config) {
		c.UpgraderConfig.CheckOrigin = fn
	}
}

// WithCheckOriginWhitelist 设置 Origin 白名单
// 示例：WithCheckOriginWhitelist([]string{"https://chat.example.com"})
func WithCheckOriginWhitelist(allowedOrigins []string) Option {
	return func(c *Config) {
		c.UpgraderConfig.AllowedOrigins = allowedOrigins
		c.UpgraderConfig.CheckOrigin = createWhitelistChecker(allowedOrigins)
	}
}

// WithAllowAllOrigins 允许所有来源（仅用于开发环境）
func WithAllowAllOrigins() Option {
	return func(c *Config) {
		c.UpgraderConfig.CheckOrigin = func(r *http.Request) bool {
			return true
		}
	}
}

// WithEnableCompression 启用压缩
func WithEnableCompression(enable bool) Option {
	return func(c *Config) {
		c.UpgraderConfig.EnableCompression = enable
	}
}

// WithMetrics 设置监控
func WithMetrics(metrics Metrics) Option {
	return func(c *Config) {
		c.Metrics = metrics
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// defaultCheckOrigin 默认 Origin 检查
// 非浏览器客户端不携带 Origin，放行；浏览器请求必须同源
func defaultCheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// createWhitelistChecker 创建白名单检查器
func createWhitelistChecker(allowedOrigins []string) func(*http.Request) bool {
	whitelist := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		whitelist[origin] = true
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// 白名单模式下拒绝空 Origin
			return false
		}
		return whitelist[origin]
	}
}

// newUpgrader 创建 gorilla Upgrader
func newUpgrader(config UpgraderConfig, handshakeTimeout time.Duration) *websocket.Upgrader {
	checkOrigin := config.CheckOrigin
	if checkOrigin == nil {
		if len(config.AllowedOrigins) > 0 {
			checkOrigin = createWhitelistChecker(config.AllowedOrigins)
		} else {
			checkOrigin = defaultCheckOrigin
		}
	}

	return &websocket.Upgrader{
		HandshakeTimeout:  handshakeTimeout,
		ReadBufferSize:    config.ReadBufferSize,
		WriteBufferSize:   config.WriteBufferSize,
		CheckOrigin:       checkOrigin,
		EnableCompression: config.EnableCompression,
	}
}
