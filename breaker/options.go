package breaker

import (
	"github.com/ceyewan/aegis/cache"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
)

// options 熔断器可选参数
type options struct {
	logger            clog.Logger
	meter             metrics.Meter
	sink              Sink
	fallbackStore     cache.Cache
	disableMaintenance bool
}

// Option 配置熔断器的可选参数
type Option func(*options)

// WithLogger 设置日志器，自动添加 breaker 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("breaker")
		}
	}
}

// WithMeter 设置指标采集器
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithSink 设置事件接收器，替换默认的日志接收器
func WithSink(sink Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

// WithFallbackStore 设置降级载荷的外部存储
//
// 不设置时降级链跳过持久化载荷这一级。
func WithFallbackStore(store cache.Cache) Option {
	return func(o *options) {
		o.fallbackStore = store
	}
}

// WithoutMaintenance 禁用后台维护任务，仅用于测试
func WithoutMaintenance() Option {
	return func(o *options) {
		o.disableMaintenance = true
	}
}

// execOptions Execute 的单次调用参数
type execOptions struct {
	fallbackValue    any
	hasFallbackValue bool
}

// ExecOption 配置单次 Execute 调用
type ExecOption func(*execOptions)

// WithFallbackValue 设置调用方兜底值
//
// 仅当降级链的其余各级都无结果时使用。
func WithFallbackValue(value any) ExecOption {
	return func(o *execOptions) {
		o.fallbackValue = value
		o.hasFallbackValue = true
	}
}
