package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryCache 基于 go-cache 的进程内缓存
type memoryCache struct {
	items      *gocache.Cache
	serializer Serializer
	keyPrefix  string
	defaultTTL time.Duration
}

func newMemoryCache(cfg *Config) *memoryCache {
	return &memoryCache{
		items:      gocache.New(cfg.Memory.DefaultExpiration, cfg.Memory.CleanupInterval),
		serializer: cfg.Serializer,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}
}

func (m *memoryCache) key(k string) string { return m.keyPrefix + k }

func (m *memoryCache) Get(_ context.Context, key string, value any) error {
	raw, found := m.items.Get(m.key(key))
	if !found {
		return ErrCacheNotFound
	}
	data, ok := raw.([]byte)
	if !ok {
		return ErrCacheSerialization.WithMessage("cache: invalid entry type")
	}
	if err := m.serializer.Unmarshal(data, value); err != nil {
		return ErrCacheSerialization.WithError(err)
	}
	return nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := m.serializer.Marshal(value)
	if err != nil {
		return ErrCacheSerialization.WithError(err)
	}
	if ttl == 0 {
		ttl = m.defaultTTL
	}
	m.items.Set(m.key(key), data, ttl)
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.items.Delete(m.key(k))
	}
	return nil
}

func (m *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	_, found := m.items.Get(m.key(key))
	return found, nil
}

func (m *memoryCache) TTL(_ context.Context, key string) (time.Duration, error) {
	_, expiration, found := m.items.GetWithExpiration(m.key(key))
	if !found {
		return 0, ErrCacheNotFound
	}
	if expiration.IsZero() {
		return -1, nil
	}
	return time.Until(expiration), nil
}

func (m *memoryCache) Ping(context.Context) error { return nil }

func (m *memoryCache) Close() error {
	m.items.Flush()
	return nil
}

func (m *memoryCache) String() string {
	return fmt.Sprintf("MemoryCache(prefix=%s, items=%d)", m.keyPrefix, m.items.ItemCount())
}
