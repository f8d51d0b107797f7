// Package cache 键值缓存：内存（go-cache）与 Redis 两种驱动，
// 附带回源防击穿与链路追踪装饰器
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache 值经 Serializer 编码后存储。Get 未命中返回 ErrCacheNotFound；
// ttl 为 0 时取 Config.DefaultTTL
type Cache interface {
	Get(ctx context.Context, key string, value any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// TTL 剩余生存时间，-1 表示永不过期
	TTL(ctx context.Context, key string) (time.Duration, error)

	Ping(ctx context.Context) error
	Close() error
}

type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONSerializer 默认编码，两种驱动都存 JSON 字节
type JSONSerializer struct{}

func (JSONSerializer) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONSerializer) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// New 按 Driver 创建缓存，cfg 为 nil 时使用内存驱动
func New(cfg *Config) (Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Serializer == nil {
		cfg.Serializer = JSONSerializer{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverRedis:
		return newRedisCache(cfg)
	default:
		return newMemoryCache(cfg), nil
	}
}

func NewWithOptions(opts ...Option) (Cache, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return New(cfg)
}
