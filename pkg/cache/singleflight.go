package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"
)

// Group 防击穿装饰器：同一 key 的并发回源只执行一次
type Group struct {
	Cache
	flight singleflight.Group
}

// NewGroup 包装底层缓存
func NewGroup(c Cache) *Group {
	return &Group{Cache: c}
}

// Forget 丢弃 key 正在进行的回源，后续调用重新执行 fn
func (g *Group) Forget(key string) {
	g.flight.Forget(key)
}

// Remember 读缓存，未命中时执行 fn 并回填
// 回填失败不影响返回值
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	var result T
	err := c.Get(ctx, key, &result)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheSerialization) {
		// 缓存不可用时直接回源
		return fn()
	}

	result, err = fn()
	if err != nil {
		return result, err
	}
	_ = c.Set(ctx, key, result, ttl)
	return result, nil
}

// RememberWithLock 同 Remember，但同一 key 的并发调用共享一次回源
func RememberWithLock[T any](ctx context.Context, g *Group, key string, ttl time.Duration, fn func() (T, error)) (T, error) {
	v, err, _ := g.flight.Do(key, func() (any, error) {
		return Remember(ctx, g.Cache, key, ttl, fn)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
