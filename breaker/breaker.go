// Package breaker 提供面向不可靠外部依赖的熔断器组件。
//
// breaker 是 Aegis 治理层的核心组件，它提供了：
// - 按服务名独立的熔断状态机（CLOSED / OPEN / HALF_OPEN）
// - 滑动窗口健康指标（失败率、慢调用率、延迟分位数）
// - 分层降级链（静态降级值 → 最近成功响应 → 外部降级存储 → 降级模式信号）
// - 后台维护任务（状态巡检、指标快照、恢复探测、降级载荷新鲜度）
// - gRPC Unary/Stream Interceptor 无侵入集成
//
// ## 基本使用
//
//	brk, _ := breaker.New(breaker.DefaultConfig(), breaker.WithLogger(logger))
//	defer brk.Close(ctx)
//
//	res, err := brk.Execute(ctx, "payment-gateway", func(ctx context.Context) (any, error) {
//	    return gateway.Charge(ctx, order)
//	})
//	if err != nil {
//	    // 熔断打开且无降级可用，或调用本身失败
//	}
//	if res.Source != breaker.SourceLive {
//	    // 降级数据，调用方可据此降低功能
//	}
//
// ## 按服务配置策略
//
//	cfg := &breaker.Config{
//	    Default: breaker.DefaultPolicy(),
//	    Services: map[string]breaker.Policy{
//	        "payment-gateway": {FailureThreshold: 3, RecoveryTimeout: 30 * time.Second, Critical: true},
//	    },
//	}
//
// 未显式配置的服务在首次使用时按默认策略自动创建熔断器实例。
package breaker

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/ceyewan/aegis/clog"
)

// Operation 受熔断保护的业务操作
// 必须遵守传入 ctx 的取消与超时
type Operation func(ctx context.Context) (any, error)

// Breaker 熔断器核心接口
type Breaker interface {
	// Execute 通过指定服务的熔断器执行操作
	//
	// 熔断打开时不调用 op，转而走降级链；降级链也无结果时返回 *OpenError。
	// 操作在 Policy.CallTimeout 限制下执行，超时按失败处理并返回 *TimeoutError。
	// 返回的 Result.Source 标记结果来源（真实调用或某级降级）。
	Execute(ctx context.Context, serviceName string, op Operation, opts ...ExecOption) (*Result, error)

	// Status 获取指定服务的状态快照（只读，除惰性的 OPEN→HALF_OPEN 老化外无副作用）
	Status(serviceName string) (*Status, error)

	// Statuses 获取全部服务的状态快照
	Statuses() map[string]*Status

	// Metrics 获取指定服务的指标快照（计数、比率、延迟分位数）
	Metrics(serviceName string) (*MetricsSnapshot, error)

	// MetricsAll 获取全部服务的指标快照
	MetricsAll() map[string]*MetricsSnapshot

	// History 获取指定服务的状态变更历史（有界，最新在后）
	History(serviceName string) []StateChangeRecord

	// ForceState 运维强制状态切换，绕过正常转换规则
	//
	// 非法目标状态返回错误并指明合法集合；合法切换仍会发出状态变更事件。
	ForceState(serviceName string, to State, reason string) error

	// SetDegradedMode 切换指定服务的降级模式开关，不影响当前状态
	SetDegradedMode(serviceName string, enabled bool) error

	// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
	UnaryClientInterceptor(opts ...InterceptorOption) grpc.UnaryClientInterceptor

	// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器
	StreamClientInterceptor(opts ...InterceptorOption) grpc.StreamClientInterceptor

	// Close 停止后台维护任务并等待退出
	Close(ctx context.Context) error
}

// State 熔断器状态
type State int

const (
	// StateClosed 闭合状态（正常）
	StateClosed State = iota
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
	// StateOpen 打开状态（熔断中）
	StateOpen
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ParseState 将字符串解析为 State，用于运维接口
func ParseState(s string) (State, error) {
	switch s {
	case "closed":
		return StateClosed, nil
	case "half_open":
		return StateHalfOpen, nil
	case "open":
		return StateOpen, nil
	default:
		return StateClosed, ErrInvalidState
	}
}

// New 创建熔断器实例
//
// 参数:
//   - cfg: 熔断器配置，nil 时使用 DefaultConfig()
//   - opts: 可选参数 (Logger, Meter, Sink, FallbackStore)
//
// New 会启动四个后台维护任务（状态巡检、指标快照、恢复探测、降级载荷
// 新鲜度检查），通过 Close 协作式停止。
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	if opt.logger == nil {
		opt.logger = clog.Discard()
	}

	opt.logger.Info("creating circuit breaker registry",
		clog.Int("failure_threshold", cfg.Default.FailureThreshold),
		clog.Duration("recovery_timeout", cfg.Default.RecoveryTimeout),
		clog.Int("success_threshold", cfg.Default.SuccessThreshold),
		clog.Duration("call_timeout", cfg.Default.CallTimeout),
		clog.Int("configured_services", len(cfg.Services)))

	return newRegistry(cfg, &opt)
}

// 维护任务与降级链的时间参数
const (
	stateMonitorInterval      = 30 * time.Second
	metricsSnapshotInterval   = 60 * time.Second
	recoveryProbeInterval     = 60 * time.Second
	fallbackFreshnessInterval = time.Hour

	// cachedResponseMaxAge 最近成功响应作为降级结果的最大年龄
	cachedResponseMaxAge = time.Hour

	// fallbackStaleAfter 降级载荷超过此年龄被标记为过期（不删除）
	fallbackStaleAfter = 6 * time.Hour

	// storeLookupTimeout 降级存储读写的硬超时
	// 降级链不能被它所保护的那类外部故障拖垮
	storeLookupTimeout = 500 * time.Millisecond
)
