// Package settings 把 configs/*.yaml 映射为各二进制的类型化配置
package settings

import (
	"maps"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tokmz/roomcast"
	"github.com/tokmz/roomcast/pkg/config"
	"github.com/tokmz/roomcast/pkg/eventsink"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/orm"
	"github.com/tokmz/roomcast/pkg/tracing"
)

// EnvPrefix 环境变量前缀，server.addr 对应 ROOMCAST_SERVER_ADDR
const EnvPrefix = "ROOMCAST"

// Server HTTP 监听配置
type Server struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	// TrustedProxies 决定 ClientIP 是否采信 X-Forwarded-For，升级限流按 ClientIP 计数
	TrustedProxies []string `mapstructure:"trusted_proxies"`
	AccessLogSkip  []string `mapstructure:"access_log_skip"`
}

// Options 转成引擎选项，未配置的项保留引擎默认值
func (s Server) Options() []roomcast.Option {
	opts := []roomcast.Option{
		roomcast.WithMode(s.Mode),
		roomcast.WithAddr(s.Addr),
		roomcast.WithReadTimeout(s.ReadTimeout),
		roomcast.WithWriteTimeout(s.WriteTimeout),
		roomcast.WithShutdownTimeout(s.ShutdownTimeout),
	}
	if s.IdleTimeout > 0 {
		opts = append(opts, roomcast.WithIdleTimeout(s.IdleTimeout))
	}
	if len(s.TrustedProxies) > 0 {
		opts = append(opts, roomcast.WithTrustedProxies(s.TrustedProxies...))
	}
	if s.AccessLogSkip != nil {
		opts = append(opts, roomcast.WithAccessLogSkip(s.AccessLogSkip...))
	}
	return opts
}

// Log 日志配置
type Log struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	Rotate     bool   `mapstructure:"rotate"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
	Caller     bool   `mapstructure:"caller"`
	// SampleInitial 大于 0 时开启采样：每秒同一消息前 N 条全部保留
	SampleInitial    int `mapstructure:"sample_initial"`
	SampleThereafter int `mapstructure:"sample_thereafter"`
}

// Build 按配置创建 Logger
func (l Log) Build() (logger.Logger, error) {
	level, err := logger.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := []logger.Option{
		logger.WithLevel(level),
		logger.WithFormat(logger.Format(l.Format)),
		logger.WithCaller(l.Caller),
		logger.WithStacktrace(true),
	}
	switch {
	case l.File != "" && l.Rotate:
		opts = append(opts, logger.WithConsoleOutput(), logger.WithRotateOutput(logger.RotateConfig{
			Filename:   l.File,
			MaxSize:    l.MaxSize,
			MaxAge:     l.MaxAge,
			MaxBackups: l.MaxBackups,
			Compress:   l.Compress,
		}))
	case l.File != "":
		opts = append(opts, logger.WithConsoleOutput(), logger.WithFileOutput(l.File))
	default:
		opts = append(opts, logger.WithConsoleOutput())
	}
	if l.SampleInitial > 0 {
		opts = append(opts, logger.WithSampling(l.SampleInitial, l.SampleThereafter))
	}
	return logger.NewWithOptions(opts...)
}

// RelayOptions 中继行为配置
type RelayOptions struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	EchoToSender      bool          `mapstructure:"echo_to_sender"`
	MaxConnections    int           `mapstructure:"max_connections"`
	MaxRoomSize       int           `mapstructure:"max_room_size"`
	SendQueueSize     int           `mapstructure:"send_queue_size"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	MaxInvalidFrames  int           `mapstructure:"max_invalid_frames"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
	UpgradeRate       float64       `mapstructure:"upgrade_rate"`
	UpgradeBurst      int           `mapstructure:"upgrade_burst"`
	EventWorkers      int           `mapstructure:"event_workers"`
	EventQueueSize    int           `mapstructure:"event_queue_size"`
	ExportTimeout     time.Duration `mapstructure:"export_timeout"`
}

// Relay cmd/relayd 配置
type Relay struct {
	Server  Server           `mapstructure:"server"`
	Relay   RelayOptions     `mapstructure:"relay"`
	Log     Log              `mapstructure:"log"`
	Tracing tracing.Config   `mapstructure:"tracing"`
	Metrics bool             `mapstructure:"metrics"`
	Events  eventsink.Config `mapstructure:"events"`
}

// Seed 种子数据配置
type Seed struct {
	File string `mapstructure:"file"`
}

// Store cmd/chatstore 配置
type Store struct {
	Server   Server         `mapstructure:"server"`
	Database orm.Config     `mapstructure:"database"`
	Seed     Seed           `mapstructure:"seed"`
	Log      Log            `mapstructure:"log"`
	Tracing  tracing.Config `mapstructure:"tracing"`
}

// RelayDefaults 中继默认值
func RelayDefaults() map[string]any {
	d := commonDefaults("roomcast-relayd", ":2134")
	maps.Copy(d, map[string]any{
		"relay.heartbeat_interval": "30s",
		"relay.echo_to_sender":     true,
		"relay.max_connections":    10000,
		"relay.send_queue_size":    256,
		"relay.max_message_size":   64 * 1024,
		"relay.max_invalid_frames": 10,
		"relay.allowed_origins":    []string{"*"},
		"relay.upgrade_rate":       20.0,
		"relay.upgrade_burst":      40,
		"relay.event_workers":      2,
		"relay.event_queue_size":   1024,
		"relay.export_timeout":     "5s",
		"events.driver":            "none",
		"events.kafka.client_id":   "roomcast-relayd",
		"events.kafka.topic":       "roomcast.events",
		"events.amqp.exchange":     "roomcast.events",
		"metrics":                  true,
	})
	return d
}

// StoreDefaults 存储服务默认值
func StoreDefaults() map[string]any {
	d := commonDefaults("roomcast-chatstore", ":2135")
	maps.Copy(d, map[string]any{
		"database.type":           "sqlite",
		"database.dsn":            "roomcast.db",
		"database.max_idle_conns": 10,
		"database.max_open_conns": 1,
		"database.prepare_stmt":   true,
		"database.log_level":      3,
		"database.slow_threshold": "200ms",
		"database.tracing":        true,
		"seed.file":               "",
	})
	return d
}

func commonDefaults(service, addr string) map[string]any {
	return map[string]any{
		"server.addr":                   addr,
		"server.mode":                   "release",
		"server.read_timeout":           "10s",
		"server.write_timeout":          "10s",
		"server.shutdown_timeout":       "10s",
		"server.idle_timeout":           "60s",
		"server.access_log_skip":        []string{"/healthz"},
		"log.level":                     "info",
		"log.format":                    "json",
		"tracing.enabled":               false,
		"tracing.service_name":          service,
		"tracing.service_version":       "1.0.0",
		"tracing.environment":           "development",
		"tracing.exporter_type":         "stdout",
		"tracing.sampling_type":         "parent_based",
		"tracing.sampling_rate":         1.0,
		"tracing.batch_timeout":         "5s",
		"tracing.max_export_batch_size": 512,
		"tracing.max_queue_size":        2048,
	}
}

// Load 读取配置文件（path 为空时只用默认值和环境变量）并反序列化为 T
// onChange 非 nil 时监控文件，每次变更后以重新解析的配置回调
func Load[T any](path string, defaults map[string]any, onChange func(*T)) (*T, *config.Config, error) {
	opts := []config.Option{
		config.WithDefaults(defaults),
		config.WithEnvPrefix(EnvPrefix),
		config.WithEnvKeyReplacer(strings.NewReplacer(".", "_")),
	}
	if path != "" {
		opts = append(opts, config.WithConfigFile(path))
	} else {
		opts = append(opts, config.WithOptional(true))
	}

	var cfg *config.Config
	if onChange != nil && path != "" {
		opts = append(opts, config.WithAutoWatch(true), config.WithOnChange(func(fsnotify.Event) {
			var next T
			if err := cfg.Unmarshal(&next); err == nil {
				onChange(&next)
			}
		}))
	}
	cfg = config.New(opts...)
	if err := cfg.Load(); err != nil {
		return nil, nil, err
	}

	var out T
	if err := cfg.Unmarshal(&out); err != nil {
		return nil, nil, err
	}
	return &out, cfg, nil
}
