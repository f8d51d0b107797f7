package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache Redis 缓存实现（单机/集群/哨兵共用 UniversalClient）
type redisCache struct {
	client     redis.UniversalClient
	serializer Serializer
	keyPrefix  string
	defaultTTL time.Duration
}

func newRedisCache(cfg *Config) (Cache, error) {
	client := newRedisClient(cfg.Redis)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, ErrCacheConnection.WithError(err)
	}

	return NewRedisWithClient(client, cfg), nil
}

// NewRedisWithClient 使用已有的 Redis 客户端创建缓存
func NewRedisWithClient(client redis.UniversalClient, cfg *Config) Cache {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Serializer == nil {
		cfg.Serializer = JSONSerializer{}
	}
	return &redisCache{
		client:     client,
		serializer: cfg.Serializer,
		keyPrefix:  cfg.KeyPrefix,
		defaultTTL: cfg.DefaultTTL,
	}
}

func newRedisClient(rc *RedisConfig) redis.UniversalClient {
	switch rc.Mode {
	case RedisCluster:
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:        rc.Addrs,
			Username:     rc.Username,
			Password:     rc.Password,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
			MaxRetries:   rc.MaxRetries,
			DialTimeout:  rc.DialTimeout,
			ReadTimeout:  rc.ReadTimeout,
			WriteTimeout: rc.WriteTimeout,
		})
	case RedisSentinel:
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    rc.MasterName,
			SentinelAddrs: rc.Addrs,
			Username:      rc.Username,
			Password:      rc.Password,
			DB:            rc.DB,
			PoolSize:      rc.PoolSize,
			MinIdleConns:  rc.MinIdleConns,
			MaxRetries:    rc.MaxRetries,
			DialTimeout:   rc.DialTimeout,
			ReadTimeout:   rc.ReadTimeout,
			WriteTimeout:  rc.WriteTimeout,
		})
	default:
		return redis.NewClient(&redis.Options{
			Addr:         rc.Addr,
			Username:     rc.Username,
			Password:     rc.Password,
			DB:           rc.DB,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
			MaxRetries:   rc.MaxRetries,
			DialTimeout:  rc.DialTimeout,
			ReadTimeout:  rc.ReadTimeout,
			WriteTimeout: rc.WriteTimeout,
		})
	}
}

func (r *redisCache) key(k string) string { return r.keyPrefix + k }

func (r *redisCache) Get(ctx context.Context, key string, value any) error {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return ErrCacheOperation.WithError(err)
	}
	if err := r.serializer.Unmarshal(data, value); err != nil {
		return ErrCacheSerialization.WithError(err)
	}
	return nil
}

func (r *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := r.serializer.Marshal(value)
	if err != nil {
		return ErrCacheSerialization.WithError(err)
	}
	if ttl == 0 {
		ttl = r.defaultTTL
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return ErrCacheOperation.WithError(err)
	}
	return nil
}

func (r *redisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}
	if err := r.client.Del(ctx, full...).Err(); err != nil {
		return ErrCacheOperation.WithError(err)
	}
	return nil
}

func (r *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, ErrCacheOperation.WithError(err)
	}
	return n > 0, nil
}

func (r *redisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, r.key(key)).Result()
	if err != nil {
		return 0, ErrCacheOperation.WithError(err)
	}
	// -2 键不存在，-1 永不过期
	switch ttl {
	case -2:
		return 0, ErrCacheNotFound
	case -1:
		return -1, nil
	}
	return ttl, nil
}

func (r *redisCache) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return ErrCacheConnection.WithError(err)
	}
	return nil
}

func (r *redisCache) Close() error {
	if err := r.client.Close(); err != nil {
		return ErrCacheOperation.WithError(err)
	}
	return nil
}

func (r *redisCache) String() string {
	return fmt.Sprintf("RedisCache(prefix=%s)", r.keyPrefix)
}
