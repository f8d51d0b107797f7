package cache

import "github.com/tokmz/roomcast/pkg/errors"

// 3100 段错误码：缓存相关
var (
	ErrCacheNotFound      = errors.New(3101, "cache key not found", 404)
	ErrCacheConnection    = errors.New(3102, "cache connection failed", 500)
	ErrCacheSerialization = errors.New(3103, "cache serialization failed", 500)
	ErrCacheInvalidConfig = errors.New(3104, "cache invalid config", 500)
	ErrCacheOperation     = errors.New(3105, "cache operation failed", 500)
)
