package breaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ceyewan/aegis/cache"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/xerrors"
)

// Source 结果来源，调用方据此区分真实数据与降级数据
type Source int

const (
	// SourceLive 真实调用返回
	SourceLive Source = iota
	// SourceStaticFallback 策略中配置的静态降级值
	SourceStaticFallback
	// SourceCachedResponse 最近一次成功响应（1 小时内）
	SourceCachedResponse
	// SourceStoredFallback 外部降级存储中的持久化载荷
	SourceStoredFallback
	// SourceCallerFallback 调用方通过 WithFallbackValue 提供的兜底值
	SourceCallerFallback
	// SourceDegraded 降级模式信号，Value 为 nil
	SourceDegraded
)

// String 返回来源的字符串表示
func (s Source) String() string {
	switch s {
	case SourceLive:
		return "live"
	case SourceStaticFallback:
		return "static_fallback"
	case SourceCachedResponse:
		return "cached_response"
	case SourceStoredFallback:
		return "stored_fallback"
	case SourceCallerFallback:
		return "caller_fallback"
	case SourceDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Result 受保护调用的结果
type Result struct {
	Value  any
	Source Source
}

// fallbackPayload 降级存储中的持久化载荷格式
type fallbackPayload struct {
	Value    any       `json:"value" msgpack:"value"`
	StoredAt time.Time `json:"stored_at" msgpack:"stored_at"`
}

// resolver 分层降级链
//
// 解析顺序: 静态降级值 → 最近成功响应 → 降级存储 → 调用方兜底值 →
// 降级模式信号 → 无降级（原始错误向上传播）。
//
// 降级存储本身也是一个外部依赖，读写都限制在 storeLookupTimeout 内
// 并由一个独立的 gobreaker 保护，存储故障退化为"无降级"而不是拖垮
// 调用链路。
type resolver struct {
	store      cache.Cache
	storeGuard *gobreaker.CircuitBreaker[fallbackPayload]
	logger     clog.Logger
}

func newResolver(store cache.Cache, logger clog.Logger) *resolver {
	settings := gobreaker.Settings{
		Name:    "breaker-fallback-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// 缓存未命中是正常结果，不应计入存储故障
		IsSuccessful: func(err error) bool {
			return err == nil || xerrors.Is(err, cache.ErrCacheMiss)
		},
	}
	return &resolver{
		store:      store,
		storeGuard: gobreaker.NewCircuitBreaker[fallbackPayload](settings),
		logger:     logger,
	}
}

// resolve 按优先级解析降级结果，无结果时返回 (nil, false)
func (r *resolver) resolve(ctx context.Context, ins *instance, callerFallback any, hasCallerFallback bool) (*Result, bool) {
	service := ins.service

	if ins.policy.HasFallback && ins.policy.StaticFallback != nil {
		r.logger.Debug("fallback resolved from static value", clog.String("service", service))
		return &Result{Value: ins.policy.StaticFallback, Source: SourceStaticFallback}, true
	}

	if value, ok := ins.cachedResponse(); ok {
		r.logger.Debug("fallback resolved from cached response", clog.String("service", service))
		return &Result{Value: value, Source: SourceCachedResponse}, true
	}

	if payload, err := r.storeGet(ctx, service); err == nil {
		r.logger.Debug("fallback resolved from fallback store",
			clog.String("service", service),
			clog.Time("stored_at", payload.StoredAt))
		return &Result{Value: payload.Value, Source: SourceStoredFallback}, true
	} else if !xerrors.Is(err, cache.ErrCacheMiss) {
		r.logger.Debug("fallback store lookup failed",
			clog.String("service", service), clog.Error(err))
	}

	if hasCallerFallback {
		r.logger.Debug("fallback resolved from caller-supplied value", clog.String("service", service))
		return &Result{Value: callerFallback, Source: SourceCallerFallback}, true
	}

	if ins.status().DegradedMode {
		r.logger.Debug("fallback resolved as degraded mode signal", clog.String("service", service))
		return &Result{Value: nil, Source: SourceDegraded}, true
	}

	r.logger.Debug("no fallback available", clog.String("service", service))
	return nil, false
}

// storeGet 从降级存储读取载荷，受超时与存储熔断器双重保护
func (r *resolver) storeGet(ctx context.Context, service string) (fallbackPayload, error) {
	if r.store == nil {
		return fallbackPayload{}, cache.ErrCacheMiss
	}

	return r.storeGuard.Execute(func() (fallbackPayload, error) {
		lookupCtx, cancel := context.WithTimeout(ctx, storeLookupTimeout)
		defer cancel()

		var payload fallbackPayload
		if err := r.store.Get(lookupCtx, storeKey(service), &payload); err != nil {
			return fallbackPayload{}, err
		}
		return payload, nil
	})
}

// persist 将成功响应异步写入降级存储，TTL 与过期阈值对齐
func (r *resolver) persist(service string, value any) {
	if r.store == nil {
		return
	}

	payload := fallbackPayload{Value: value, StoredAt: time.Now()}
	_, err := r.storeGuard.Execute(func() (fallbackPayload, error) {
		ctx, cancel := context.WithTimeout(context.Background(), storeLookupTimeout)
		defer cancel()
		return fallbackPayload{}, r.store.Set(ctx, storeKey(service), payload, fallbackStaleAfter)
	})
	if err != nil {
		r.logger.Debug("fallback store persist failed",
			clog.String("service", service), clog.Error(err))
	}
}

func storeKey(service string) string {
	return "fallback:" + service
}
