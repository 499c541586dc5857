package cache

import (
	"context"
	"reflect"
	"time"

	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/xerrors"
)

// defaultTTL 当未指定 TTL 时使用的默认时间（100年，模拟永久）
const defaultTTL = 24 * 365 * 100 * time.Hour

// memoryCache 进程内缓存实现（非导出）
type memoryCache struct {
	cache  *otter.Cache[string, any]
	logger clog.Logger
}

// newMemory 创建进程内缓存实例
func newMemory(cfg *MemoryConfig, logger clog.Logger) (Cache, error) {
	if cfg == nil {
		cfg = &MemoryConfig{Capacity: 10000}
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 10000
	}

	// 写入过期策略（与 Redis TTL 语义一致）：
	// 过期时间从写入开始计算，读取不重置 TTL，
	// 具体 TTL 在 Set 时通过 SetExpiresAfter 覆盖
	opts := &otter.Options[string, any]{
		MaximumSize:      cfg.Capacity,
		StatsRecorder:    stats.NewCounter(),
		ExpiryCalculator: otter.ExpiryWriting[string, any](defaultTTL),
	}

	c, err := otter.New(opts)
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to build otter cache")
	}

	logger.Debug("memory cache created", clog.Int("capacity", cfg.Capacity))

	return &memoryCache{
		cache:  c,
		logger: logger,
	}, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.cache.Set(key, value)
	if ttl > 0 {
		c.cache.SetExpiresAfter(key, ttl)
	}
	return nil
}

func (c *memoryCache) Get(ctx context.Context, key string, dest any) error {
	val, ok := c.cache.GetIfPresent(key)
	if !ok {
		return ErrCacheMiss
	}
	return assignValue(val, dest)
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.cache.Invalidate(key)
	return nil
}

func (c *memoryCache) Has(ctx context.Context, key string) (bool, error) {
	_, ok := c.cache.GetIfPresent(key)
	return ok, nil
}

func (c *memoryCache) Close() error {
	c.cache.InvalidateAll()
	return nil
}

// assignValue 将缓存的原始对象赋值给 dest 指向的内容
func assignValue(val any, dest any) error {
	destValue := reflect.ValueOf(dest)
	if destValue.Kind() != reflect.Ptr || destValue.IsNil() {
		return xerrors.New("cache: dest must be a non-nil pointer")
	}

	elem := destValue.Elem()
	srcValue := reflect.ValueOf(val)
	if !srcValue.IsValid() {
		elem.Set(reflect.Zero(elem.Type()))
		return nil
	}
	if !srcValue.Type().AssignableTo(elem.Type()) {
		return xerrors.New("cache: cached value type " + srcValue.Type().String() +
			" is not assignable to " + elem.Type().String())
	}

	elem.Set(srcValue)
	return nil
}
