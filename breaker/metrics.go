package breaker

// Metrics 指标常量定义
const (
	// MetricRequestsTotal 请求总数 (Counter)
	MetricRequestsTotal = "breaker_requests_total"

	// MetricSuccessTotal 成功请求数 (Counter)
	MetricSuccessTotal = "breaker_success_total"

	// MetricFailuresTotal 失败请求数 (Counter)
	MetricFailuresTotal = "breaker_failures_total"

	// MetricRejectsTotal 被熔断拒绝的请求数 (Counter)
	MetricRejectsTotal = "breaker_rejects_total"

	// MetricFallbacksTotal 降级链命中次数 (Counter)
	MetricFallbacksTotal = "breaker_fallbacks_total"

	// MetricStateChanges 状态变更次数 (Counter)
	MetricStateChanges = "breaker_state_changes_total"

	// MetricState 当前状态 (Gauge, closed=0 half_open=1 open=2)
	MetricState = "breaker_state"

	// MetricFailureRate 窗口失败率 (Gauge)
	MetricFailureRate = "breaker_failure_rate"

	// MetricSlowCallRate 窗口慢调用率 (Gauge)
	MetricSlowCallRate = "breaker_slow_call_rate"

	// MetricRequestDuration 请求耗时 (Histogram)
	MetricRequestDuration = "breaker_request_duration_seconds"

	// LabelService 服务名标签
	LabelService = "service"

	// LabelFromState 源状态标签
	LabelFromState = "from_state"

	// LabelToState 目标状态标签
	LabelToState = "to_state"

	// LabelFailureKind 失败分类标签
	LabelFailureKind = "failure_kind"

	// LabelSource 降级来源标签
	LabelSource = "source"
)
