package breaker

import (
	"sync"
	"time"
)

// historyLimit 每个实例保留的状态变更记录上限
const historyLimit = 64

// instance 单个服务的熔断器实例
//
// 所有可变状态由 mu 保护。状态转换在锁内完成并生成
// StateChangeRecord，事件派发在锁外进行，保证每次真实
// 转换恰好产生一条记录。
type instance struct {
	service string
	policy  Policy

	mu             sync.Mutex
	state          State
	failureCount   int // 连续失败计数，CLOSED 下每次成功衰减一次
	successCount   int // HALF_OPEN 下的连续成功计数
	lastFailure    time.Time
	lastSuccess    time.Time
	stateChangedAt time.Time
	degradedMode   bool
	fallbackStale  bool
	window         *window
	history        []StateChangeRecord

	// 最近一次成功响应，作为第二级降级来源
	lastResponse   any
	lastResponseAt time.Time
}

func newInstance(service string, policy Policy) *instance {
	return &instance{
		service:        service,
		policy:         policy,
		state:          StateClosed,
		stateChangedAt: time.Now(),
		degradedMode:   policy.DegradedMode,
		window:         newWindow(policy.WindowSize),
	}
}

// evaluate 返回当前有效状态，惰性完成 OPEN→HALF_OPEN 老化
//
// 返回非 nil 的记录表示本次调用触发了转换，调用方负责派发。
func (ins *instance) evaluate() (State, *StateChangeRecord) {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	if ins.state == StateOpen && time.Since(ins.stateChangedAt) >= ins.policy.RecoveryTimeout {
		record := ins.transitionLocked(StateHalfOpen, "recovery timeout elapsed")
		return ins.state, record
	}
	return ins.state, nil
}

// recordSuccess 记录一次成功调用并推进状态机
func (ins *instance) recordSuccess(latency time.Duration) *StateChangeRecord {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	slow := latency >= ins.policy.SlowCallDurationThreshold
	ins.window.recordSuccess(time.Now(), latency, slow)
	ins.lastSuccess = time.Now()

	switch ins.state {
	case StateClosed:
		if ins.failureCount > 0 {
			ins.failureCount--
		}
		// 成功但过慢的调用也可能触发慢调用率熔断
		if ins.shouldOpenLocked() {
			return ins.transitionLocked(StateOpen, "slow call rate exceeded threshold")
		}
	case StateHalfOpen:
		ins.successCount++
		if ins.successCount >= ins.policy.SuccessThreshold {
			return ins.transitionLocked(StateClosed, "success threshold reached in half-open")
		}
	}
	return nil
}

// recordFailure 记录一次失败调用并推进状态机
func (ins *instance) recordFailure(latency time.Duration, kind FailureKind) *StateChangeRecord {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	ins.window.recordFailure(time.Now(), latency, kind)
	ins.lastFailure = time.Now()
	ins.failureCount++

	switch ins.state {
	case StateClosed:
		if ins.shouldOpenLocked() {
			return ins.transitionLocked(StateOpen, "failure threshold exceeded")
		}
	case StateHalfOpen:
		// 探测期任何失败立即回到 OPEN
		return ins.transitionLocked(StateOpen, "failure during half-open probe")
	}
	return nil
}

// shouldOpenLocked 判断是否应当熔断，满足任一条件即打开:
//
//  1. 连续失败计数达到 FailureThreshold
//  2. 生命周期请求数达到 MinimumThroughput 且窗口失败率超过 50%
//  3. 窗口样本数达到 MinimumThroughput 且慢调用率超过 SlowCallRateThreshold
func (ins *instance) shouldOpenLocked() bool {
	if ins.failureCount >= ins.policy.FailureThreshold {
		return true
	}
	if ins.window.total >= int64(ins.policy.MinimumThroughput) && ins.window.windowFailureRate() > 0.5 {
		return true
	}
	if ins.window.occupancy() >= ins.policy.MinimumThroughput && ins.window.slowCallRate() > ins.policy.SlowCallRateThreshold {
		return true
	}
	return false
}

// transitionLocked 执行状态转换，调用方必须持有 mu
func (ins *instance) transitionLocked(to State, reason string) *StateChangeRecord {
	record := newStateChangeRecord(ins.service, ins.state, to, reason, ins.failureCount, ins.successCount)

	ins.state = to
	ins.stateChangedAt = record.Time

	switch to {
	case StateClosed:
		// 完全恢复：清零失败计数与窗口样本，生命周期计数保留
		ins.failureCount = 0
		ins.successCount = 0
		ins.window.resetSamples()
	case StateHalfOpen:
		ins.successCount = 0
	}

	ins.history = append(ins.history, record)
	if len(ins.history) > historyLimit {
		ins.history = ins.history[len(ins.history)-historyLimit:]
	}
	return &record
}

// forceState 运维强制切换状态，目标与当前相同则为空操作
func (ins *instance) forceState(to State, reason string) *StateChangeRecord {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	if ins.state == to {
		return nil
	}
	return ins.transitionLocked(to, reason)
}

func (ins *instance) setDegradedMode(enabled bool) {
	ins.mu.Lock()
	defer ins.mu.Unlock()
	ins.degradedMode = enabled
}

func (ins *instance) setFallbackStale(stale bool) {
	ins.mu.Lock()
	defer ins.mu.Unlock()
	ins.fallbackStale = stale
}

// cacheResponse 缓存最近一次成功响应
func (ins *instance) cacheResponse(value any) {
	ins.mu.Lock()
	defer ins.mu.Unlock()
	ins.lastResponse = value
	ins.lastResponseAt = time.Now()
}

// cachedResponse 返回未超龄的最近成功响应
func (ins *instance) cachedResponse() (any, bool) {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	if ins.lastResponse == nil || time.Since(ins.lastResponseAt) > cachedResponseMaxAge {
		return nil, false
	}
	return ins.lastResponse, true
}

// status 生成状态快照
func (ins *instance) status() *Status {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	return &Status{
		Service:        ins.service,
		State:          ins.state,
		FailureCount:   ins.failureCount,
		SuccessCount:   ins.successCount,
		LastFailure:    ins.lastFailure,
		LastSuccess:    ins.lastSuccess,
		StateChangedAt: ins.stateChangedAt,
		DegradedMode:   ins.degradedMode,
		FallbackStale:  ins.fallbackStale,
		Policy:         ins.policy,
	}
}

// metrics 生成指标快照
func (ins *instance) metrics() *MetricsSnapshot {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	p50, p95, p99 := ins.window.percentiles()
	return &MetricsSnapshot{
		Service:           ins.service,
		TotalRequests:     ins.window.total,
		SuccessCount:      ins.window.success,
		FailureCount:      ins.window.failure,
		TimeoutCount:      ins.window.timeout,
		SlowCallCount:     ins.window.slow,
		FailureRate:       ins.window.failureRate(),
		WindowFailureRate: ins.window.windowFailureRate(),
		SlowCallRate:      ins.window.slowCallRate(),
		AvgLatency:        ins.window.avgLatency(),
		P50Latency:        p50,
		P95Latency:        p95,
		P99Latency:        p99,
	}
}

// stateHistory 返回状态变更历史的拷贝，最新在后
func (ins *instance) stateHistory() []StateChangeRecord {
	ins.mu.Lock()
	defer ins.mu.Unlock()

	out := make([]StateChangeRecord, len(ins.history))
	copy(out, ins.history)
	return out
}

// currentState 返回当前状态，不触发惰性老化
func (ins *instance) currentState() State {
	ins.mu.Lock()
	defer ins.mu.Unlock()
	return ins.state
}
