package breaker

import (
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/aegis/clog"
)

// StateChangeRecord 一次状态转换的不可变记录
type StateChangeRecord struct {
	ID           string    `json:"id"`
	Time         time.Time `json:"time"`
	Service      string    `json:"service"`
	From         State     `json:"from"`
	To           State     `json:"to"`
	Reason       string    `json:"reason"`
	FailureCount int       `json:"failure_count"`
	SuccessCount int       `json:"success_count"`
}

// newStateChangeRecord 生成带唯一 ID 的转换记录
func newStateChangeRecord(service string, from, to State, reason string, failures, successes int) StateChangeRecord {
	return StateChangeRecord{
		ID:           uuid.NewString(),
		Time:         time.Now(),
		Service:      service,
		From:         from,
		To:           to,
		Reason:       reason,
		FailureCount: failures,
		SuccessCount: successes,
	}
}

// Status 服务熔断器的状态快照
type Status struct {
	Service        string    `json:"service"`
	State          State     `json:"state"`
	FailureCount   int       `json:"failure_count"`
	SuccessCount   int       `json:"success_count"`
	LastFailure    time.Time `json:"last_failure,omitzero"`
	LastSuccess    time.Time `json:"last_success,omitzero"`
	StateChangedAt time.Time `json:"state_changed_at"`
	DegradedMode   bool      `json:"degraded_mode"`
	FallbackStale  bool      `json:"fallback_stale"`
	Policy         Policy    `json:"policy"`
}

// MetricsSnapshot 服务熔断器的指标快照
type MetricsSnapshot struct {
	Service           string        `json:"service"`
	TotalRequests     int64         `json:"total_requests"`
	SuccessCount      int64         `json:"success_count"`
	FailureCount      int64         `json:"failure_count"`
	TimeoutCount      int64         `json:"timeout_count"`
	SlowCallCount     int64         `json:"slow_call_count"`
	FailureRate       float64       `json:"failure_rate"`
	WindowFailureRate float64       `json:"window_failure_rate"`
	SlowCallRate      float64       `json:"slow_call_rate"`
	AvgLatency        time.Duration `json:"avg_latency"`
	P50Latency        time.Duration `json:"p50_latency"`
	P95Latency        time.Duration `json:"p95_latency"`
	P99Latency        time.Duration `json:"p99_latency"`
}

// Sink 熔断事件接收器，对接告警和审计系统
//
// 回调以 fire-and-forget 方式派发并带 panic 保护，
// 实现方不应在回调内做阻塞操作。
type Sink interface {
	// OnStateChange 状态转换时回调，每次真实转换恰好一次
	OnStateChange(record StateChangeRecord)

	// OnCriticalFailure 关键服务（Policy.Critical）调用失败时回调
	OnCriticalFailure(service string, kind FailureKind, details string)
}

// logSink 默认事件接收器，仅写结构化日志
type logSink struct {
	logger clog.Logger
}

func newLogSink(logger clog.Logger) Sink {
	return &logSink{logger: logger}
}

func (s *logSink) OnStateChange(record StateChangeRecord) {
	s.logger.Warn("circuit breaker state changed",
		clog.String("record_id", record.ID),
		clog.String("service", record.Service),
		clog.String("from", record.From.String()),
		clog.String("to", record.To.String()),
		clog.String("reason", record.Reason),
		clog.Int("failure_count", record.FailureCount),
		clog.Int("success_count", record.SuccessCount))
}

func (s *logSink) OnCriticalFailure(service string, kind FailureKind, details string) {
	s.logger.Error("critical service call failed",
		clog.String("service", service),
		clog.String("failure_kind", kind.String()),
		clog.String("details", details))
}
