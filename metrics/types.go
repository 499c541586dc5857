// Package metrics 提供基于 OpenTelemetry + Prometheus 的指标组件。
//
// 设计原则：
//   - 抽象接口，不暴露底层实现（OTel SDK）
//   - 禁用时返回 noop 实现，调用方无需判空
//   - 指标通过 Prometheus HTTP 端点暴露
//
// 基本使用：
//
//	meter, _ := metrics.New(&metrics.Config{
//	    Enabled:     true,
//	    ServiceName: "payment-service",
//	    Port:        9090,
//	    Path:        "/metrics",
//	})
//	defer meter.Shutdown(ctx)
//
//	counter, _ := meter.Counter("requests_total", "Total requests")
//	counter.Inc(ctx, metrics.L("service", "payments"))
package metrics

import "context"

// Meter 指标接口，负责创建各类指标
type Meter interface {
	// Counter 创建累加器（只增不减）
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)

	// Gauge 创建仪表盘（可增可减可设置）
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)

	// Histogram 创建直方图（分布统计）
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// Shutdown 关闭 Meter，刷新所有指标
	Shutdown(ctx context.Context) error
}

// Counter 累加器接口
type Counter interface {
	Inc(ctx context.Context, labels ...Label)
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 仪表盘接口
type Gauge interface {
	Set(ctx context.Context, val float64, labels ...Label)
	Inc(ctx context.Context, labels ...Label)
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 直方图接口
type Histogram interface {
	Record(ctx context.Context, val float64, labels ...Label)
}

// MetricOption 单个指标的选项函数
type MetricOption func(*MetricOptions)

// MetricOptions 单个指标的选项配置
type MetricOptions struct {
	// Unit 指标单位（如 "seconds"、"bytes"）
	Unit string
}

// WithUnit 设置指标单位
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}
