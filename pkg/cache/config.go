package cache

import "time"

// DriverType 驱动类型
type DriverType string

const (
	DriverRedis  DriverType = "redis"
	DriverMemory DriverType = "memory"
)

// RedisMode Redis 部署模式
type RedisMode string

const (
	RedisStandalone RedisMode = "standalone"
	RedisCluster    RedisMode = "cluster"
	RedisSentinel   RedisMode = "sentinel"
)

// Config 缓存配置
type Config struct {
	Driver     DriverType
	Redis      *RedisConfig
	Memory     *MemoryConfig
	Serializer Serializer
	KeyPrefix  string        // 键前缀，多个服务共用一个 Redis 时避免冲突
	DefaultTTL time.Duration // Set 未指定 ttl 时使用
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr         string    // 地址（单机）
	Addrs        []string  // 地址列表（集群/哨兵）
	Mode         RedisMode // standalone, cluster, sentinel
	MasterName   string    // 哨兵模式主节点名称
	Username     string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MemoryConfig 内存缓存配置
type MemoryConfig struct {
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
}

// DefaultConfig 返回默认配置（内存驱动）
func DefaultConfig() *Config {
	return &Config{
		Driver:     DriverMemory,
		Serializer: JSONSerializer{},
		DefaultTTL: 10 * time.Minute,
		Memory:     DefaultMemoryConfig(),
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		Mode:         RedisStandalone,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// DefaultMemoryConfig 返回默认 Memory 配置
func DefaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		DefaultExpiration: 10 * time.Minute,
		CleanupInterval:   5 * time.Minute,
	}
}

// Option 配置选项
type Option func(*Config)

// WithRedis 使用 Redis 驱动
func WithRedis(cfg *RedisConfig) Option {
	return func(c *Config) {
		c.Driver = DriverRedis
		c.Redis = cfg
	}
}

// WithMemory 使用内存驱动
func WithMemory(cfg *MemoryConfig) Option {
	return func(c *Config) {
		c.Driver = DriverMemory
		c.Memory = cfg
	}
}

// WithSerializer 设置序列化器
func WithSerializer(s Serializer) Option {
	return func(c *Config) { c.Serializer = s }
}

// WithKeyPrefix 设置键前缀
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) { c.KeyPrefix = prefix }
}

// WithDefaultTTL 设置默认 TTL
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Config) { c.DefaultTTL = ttl }
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Serializer == nil {
		return ErrCacheInvalidConfig.WithMessage("cache: serializer is required")
	}

	switch c.Driver {
	case DriverMemory:
		if c.Memory == nil {
			return ErrCacheInvalidConfig.WithMessage("cache: memory config is required")
		}
	case DriverRedis:
		if c.Redis == nil {
			return ErrCacheInvalidConfig.WithMessage("cache: redis config is required")
		}
		return c.Redis.validate()
	default:
		return ErrCacheInvalidConfig.WithMessage("cache: invalid driver type " + string(c.Driver))
	}
	return nil
}

func (r *RedisConfig) validate() error {
	switch r.Mode {
	case RedisStandalone, "":
		if r.Addr == "" {
			return ErrCacheInvalidConfig.WithMessage("cache: redis addr is required for standalone mode")
		}
	case RedisCluster:
		if len(r.Addrs) < 3 {
			return ErrCacheInvalidConfig.WithMessage("cache: redis cluster requires at least 3 nodes")
		}
	case RedisSentinel:
		if len(r.Addrs) == 0 {
			return ErrCacheInvalidConfig.WithMessage("cache: redis sentinel requires at least 1 sentinel node")
		}
		if r.MasterName == "" {
			return ErrCacheInvalidConfig.WithMessage("cache: redis sentinel requires master name")
		}
	default:
		return ErrCacheInvalidConfig.WithMessage("cache: invalid redis mode " + string(r.Mode))
	}
	return nil
}
