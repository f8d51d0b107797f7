package middleware

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tokmz/roomcast"
	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/logger"
	"go.uber.org/zap"
)

// RateLimiterConfig 限流中间件配置
type RateLimiterConfig struct {
	// RequestsPerSecond 每秒允许的请求数（默认 100）
	RequestsPerSecond float64

	// Burst 突发容量（默认等于 RequestsPerSecond）
	Burst int

	// KeyFunc 自定义限流 key 函数（默认使用客户端 IP）
	KeyFunc func(c *roomcast.Context) string

	// ExcludePaths 排除的路径（不限流）
	ExcludePaths []string

	Logger logger.Logger

	// CleanupInterval 过期桶清理间隔（默认 10 分钟）
	CleanupInterval time.Duration

	// BucketExpiry 桶无访问多久后清理（默认 30 分钟）
	BucketExpiry time.Duration
}

func defaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		RequestsPerSecond: 100,
		CleanupInterval:   10 * time.Minute,
		BucketExpiry:      30 * time.Minute,
	}
}

// tokenBucket 令牌桶
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: time.Now(),
	}
}

func (t *tokenBucket) allow(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tokens += now.Sub(t.lastRefill).Seconds() * t.refillRate
	if t.tokens > t.maxTokens {
		t.tokens = t.maxTokens
	}
	t.lastRefill = now

	if t.tokens >= 1 {
		t.tokens--
		return true
	}
	return false
}

// RateLimiter 创建限流中间件
// 令牌桶按 key（默认客户端 IP）存放在 go-cache 中，长时间无访问的桶由 janitor 清理
func RateLimiter(cfgs ...*RateLimiterConfig) roomcast.HandlerFunc {
	cfg := defaultRateLimiterConfig()
	if len(cfgs) > 0 && cfgs[0] != nil {
		cfg = cfgs[0]
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 100
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond)
		if cfg.Burst < 1 {
			cfg.Burst = 1
		}
	}
	if cfg.BucketExpiry <= 0 {
		cfg.BucketExpiry = 30 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *roomcast.Context) string {
			return c.ClientIP()
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	skipMap := make(map[string]bool, len(cfg.ExcludePaths))
	for _, path := range cfg.ExcludePaths {
		skipMap[path] = true
	}

	buckets := cache.New(cfg.BucketExpiry, cfg.CleanupInterval)
	var mu sync.Mutex

	bucketFor := func(key string) *tokenBucket {
		mu.Lock()
		defer mu.Unlock()
		if v, ok := buckets.Get(key); ok {
			b := v.(*tokenBucket)
			buckets.SetDefault(key, b)
			return b
		}
		b := newTokenBucket(cfg.RequestsPerSecond, cfg.Burst)
		buckets.SetDefault(key, b)
		return b
	}

	return func(c *roomcast.Context) {
		if skipMap[c.Request().URL.Path] {
			c.Next()
			return
		}

		key := cfg.KeyFunc(c)
		if !bucketFor(key).allow(time.Now()) {
			cfg.Logger.Warn("rate limit exceeded",
				zap.String("key", key),
				zap.String("path", c.Request().URL.Path),
				zap.Float64("rate", cfg.RequestsPerSecond),
			)
			c.RespondError(errors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
