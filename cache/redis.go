package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/aegis/cache/serializer"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/xerrors"
)

// redisCache Redis 缓存实现（非导出）
type redisCache struct {
	client     *redis.Client
	prefix     string
	serializer serializer.Serializer
	logger     clog.Logger
}

// newRedis 创建 Redis 缓存实例
func newRedis(cfg *Config, logger clog.Logger) (Cache, error) {
	if cfg.Redis == nil {
		cfg.Redis = &RedisConfig{}
	}
	cfg.Redis.setDefaults()

	ser, err := serializer.New(cfg.Serializer)
	if err != nil {
		return nil, xerrors.Wrap(err, "cache: invalid serializer")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	logger.Debug("redis cache created",
		clog.String("addr", cfg.Redis.Addr),
		clog.String("prefix", cfg.Prefix))

	return &redisCache{
		client:     client,
		prefix:     cfg.Prefix,
		serializer: ser,
		logger:     logger,
	}, nil
}

// Ping 验证 Redis 连接可用
func (c *redisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return xerrors.Wrap(err, "cache: redis ping failed")
	}
	return nil
}

func (c *redisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := c.serializer.Marshal(value)
	if err != nil {
		return xerrors.Wrap(err, "cache: marshal failed")
	}

	if err := c.client.Set(ctx, c.buildKey(key), data, ttl).Err(); err != nil {
		return xerrors.Wrapf(err, "cache: set %s failed", key)
	}
	return nil
}

func (c *redisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, c.buildKey(key)).Bytes()
	if err != nil {
		if xerrors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return xerrors.Wrapf(err, "cache: get %s failed", key)
	}

	if err := c.serializer.Unmarshal(data, dest); err != nil {
		return xerrors.Wrap(err, "cache: unmarshal failed")
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.buildKey(key)).Err(); err != nil {
		return xerrors.Wrapf(err, "cache: delete %s failed", key)
	}
	return nil
}

func (c *redisCache) Has(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.buildKey(key)).Result()
	if err != nil {
		return false, xerrors.Wrapf(err, "cache: exists %s failed", key)
	}
	return n > 0, nil
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

// buildKey 拼接全局前缀
func (c *redisCache) buildKey(key string) string {
	return c.prefix + key
}
