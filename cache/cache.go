// Package cache 提供降级载荷的持久化存储组件。
//
// Cache 是熔断器降级链的外部协作者：成功调用将最近一次响应快照写入，
// 熔断或调用失败时降级解析链从这里读取替代结果。
// 支持两种驱动：
//   - memory: 基于 otter 的进程内缓存，容量有界，写入过期
//   - redis: 基于 go-redis 的分布式缓存，支持 Key 前缀与序列化器
//
// 基本使用：
//
//	store, _ := cache.New(&cache.Config{
//	    Driver:     cache.DriverRedis,
//	    Prefix:     "aegis:fallback:",
//	    Serializer: "msgpack",
//	    Redis:      &cache.RedisConfig{Addr: "localhost:6379"},
//	}, cache.WithLogger(logger))
//
//	err := store.Set(ctx, "payment-gateway", payload, 6*time.Hour)
//
//	var cached Payload
//	err = store.Get(ctx, "payment-gateway", &cached)
package cache

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/xerrors"
)

// 支持的驱动
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// 错误定义
var (
	// ErrCacheMiss 缓存未命中
	ErrCacheMiss = xerrors.New("cache: miss")

	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("cache: config is nil")
)

// Cache 定义了降级载荷存储的核心能力
type Cache interface {
	// Set 写入载荷，ttl <= 0 时永不过期
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Get 读取载荷到 dest（必须是指针），未命中返回 ErrCacheMiss
	Get(ctx context.Context, key string, dest any) error

	// Delete 删除载荷
	Delete(ctx context.Context, key string) error

	// Has 判断载荷是否存在
	Has(ctx context.Context, key string) (bool, error)

	// Close 释放底层资源
	Close() error
}

// New 根据配置创建缓存实例
func New(cfg *Config, opts ...Option) (Cache, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	if opt.Logger == nil {
		opt.Logger = clog.Discard()
	}

	switch cfg.Driver {
	case DriverMemory, "":
		return newMemory(cfg.Memory, opt.Logger)
	case DriverRedis:
		return newRedis(cfg, opt.Logger)
	default:
		return nil, xerrors.New("cache: unsupported driver: " + cfg.Driver)
	}
}
