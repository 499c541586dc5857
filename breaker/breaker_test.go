package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// TestNewBreaker 测试熔断器创建
func TestNewBreaker(t *testing.T) {
	brk, err := New(DefaultConfig(), WithoutMaintenance())
	if err != nil {
		t.Fatalf("New should not return error, got: %v", err)
	}
	if brk == nil {
		t.Fatal("New should return a valid breaker")
	}
	defer brk.Close(context.Background())
}

// TestNewBreakerNilConfig 测试 nil 配置回退到默认配置
func TestNewBreakerNilConfig(t *testing.T) {
	brk, err := New(nil, WithoutMaintenance())
	if err != nil {
		t.Fatalf("New with nil config should fall back to defaults, got: %v", err)
	}
	defer brk.Close(context.Background())

	status, err := brk.Status("anything")
	if err != nil {
		t.Fatalf("Status should not return error, got: %v", err)
	}
	if status.Policy.FailureThreshold != 5 {
		t.Errorf("Expected default failure threshold 5, got: %d", status.Policy.FailureThreshold)
	}
}

// TestNewBreakerInvalidConfig 测试非法慢调用率配置
func TestNewBreakerInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Default.SlowCallRateThreshold = 1.5

	_, err := New(cfg, WithoutMaintenance())
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got: %v", err)
	}
}

// TestExecuteSuccess 测试成功执行
func TestExecuteSuccess(t *testing.T) {
	brk, _ := New(DefaultConfig(), WithoutMaintenance())
	defer brk.Close(context.Background())

	res, err := brk.Execute(context.Background(), "test-service", func(ctx context.Context) (any, error) {
		return "success", nil
	})
	if err != nil {
		t.Fatalf("Execute should not return error, got: %v", err)
	}
	if res.Value != "success" {
		t.Errorf("Expected result 'success', got: %v", res.Value)
	}
	if res.Source != SourceLive {
		t.Errorf("Expected SourceLive, got: %v", res.Source)
	}
}

// TestExecuteEmptyServiceName 测试空服务名
func TestExecuteEmptyServiceName(t *testing.T) {
	brk, _ := New(DefaultConfig(), WithoutMaintenance())
	defer brk.Close(context.Background())

	_, err := brk.Execute(context.Background(), "", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, ErrServiceNameEmpty) {
		t.Fatalf("Expected ErrServiceNameEmpty, got: %v", err)
	}
}

// TestStartsClosed 测试初始状态为闭合
func TestStartsClosed(t *testing.T) {
	brk, _ := New(DefaultConfig(), WithoutMaintenance())
	defer brk.Close(context.Background())

	status, err := brk.Status("fresh-service")
	if err != nil {
		t.Fatalf("Status should not return error, got: %v", err)
	}
	if status.State != StateClosed {
		t.Errorf("Expected initial state closed, got: %v", status.State)
	}
}

// TestUnknownServiceUsesDefaults 测试未配置服务继承默认策略
func TestUnknownServiceUsesDefaults(t *testing.T) {
	cfg := &Config{
		Default: Policy{FailureThreshold: 7},
		Services: map[string]Policy{
			"configured": {FailureThreshold: 2},
		},
	}
	brk, _ := New(cfg, WithoutMaintenance())
	defer brk.Close(context.Background())

	status, _ := brk.Status("not-configured")
	if status.Policy.FailureThreshold != 7 {
		t.Errorf("Expected inherited threshold 7, got: %d", status.Policy.FailureThreshold)
	}

	status, _ = brk.Status("configured")
	if status.Policy.FailureThreshold != 2 {
		t.Errorf("Expected service threshold 2, got: %d", status.Policy.FailureThreshold)
	}
	// 未覆盖字段继承默认值
	if status.Policy.RecoveryTimeout != 60*time.Second {
		t.Errorf("Expected inherited recovery timeout 60s, got: %v", status.Policy.RecoveryTimeout)
	}
}

// TestOpensAfterFailureThreshold 测试达到失败阈值后熔断
func TestOpensAfterFailureThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Default.FailureThreshold = 3
	brk, _ := New(cfg, WithoutMaintenance())
	defer brk.Close(context.Background())

	ctx := context.Background()
	boom := errors.New("backend down")
	for i := 0; i < 3; i++ {
		_, err := brk.Execute(ctx, "flaky", func(ctx context.Context) (any, error) {
			return nil, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Expected original error to propagate, got: %v", err)
		}
	}

	status, _ := brk.Status("flaky")
	if status.State != StateOpen {
		t.Fatalf("Expected open after %d failures, got: %v", 3, status.State)
	}

	history := brk.History("flaky")
	if len(history) != 1 {
		t.Fatalf("Expected exactly one transition, got: %d", len(history))
	}
	if history[0].From != StateClosed || history[0].To != StateOpen {
		t.Errorf("Expected closed->open transition, got: %v->%v", history[0].From, history[0].To)
	}
	if history[0].FailureCount != 3 {
		t.Errorf("Expected failure count 3 at transition, got: %d", history[0].FailureCount)
	}
}

// TestOpenSkipsOperation 测试熔断打开时不调用操作
func TestOpenSkipsOperation(t *testing.T) {
	brk, _ := New(DefaultConfig(), WithoutMaintenance())
	defer brk.Close(context.Background())

	if err := brk.ForceState("svc", StateOpen, "test"); err != nil {
		t.Fatalf("ForceState should not return error, got: %v", err)
	}

	invoked := false
	_, err := brk.Execute(context.Background(), "svc", func(ctx context.Context) (any, error) {
		invoked = true
		return nil, nil
	})
	if invoked {
		t.Fatal("Operation must not be invoked while open")
	}
	if !errors.Is(err, ErrOpenState) {
		t.Fatalf("Expected ErrOpenState, got: %v", err)
	}
	var openErr *OpenError
	if !errors.As(err, &openErr) || openErr.Service != "svc" {
		t.Errorf("Expected OpenError for svc, got: %v", err)
	}
}

// TestRecoveryToHalfOpen 测试恢复超时后进入半开
func TestRecoveryToHalfOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Default.FailureThreshold = 1
	cfg.Default.RecoveryTimeout = 50 * time.Millisecond
	brk, _ := New(cfg, WithoutMaintenance())
	defer brk.Close(context.Background())

	ctx := context.Background()
	brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
		return nil, errors.New("fail")
	})

	status, _ := brk.Status("svc")
	if status.State != StateOpen {
		t.Fatalf("Expected open, got: %v", status.State)
	}

	time.Sleep(80 * time.Millisecond)

	status, _ = brk.Status("svc")
	if status.State != StateHalfOpen {
		t.Fatalf("Expected half_open after recovery timeout, got: %v", status.State)
	}
}

// TestHalfOpenFailureReopens 测试半开探测失败立即回到打开
func TestHalfOpenFailureReopens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Default.FailureThreshold = 1
	cfg.Default.RecoveryTimeout = 20 * time.Millisecond
	brk, _ := New(cfg, WithoutMaintenance())
	defer brk.Close(context.Background())

	ctx := context.Background()
	brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
		return nil, errors.New("fail")
	})
	time.Sleep(40 * time.Millisecond)

	brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
		return nil, errors.New("probe failed")
	})

	status, _ := brk.Status("svc")
	if status.State != StateOpen {
		t.Fatalf("Expected open after failed probe, got: %v", status.State)
	}
}

// TestHalfOpenSuccessThresholdCloses 测试半开累计成功后闭合
func TestHalfOpenSuccessThresholdCloses(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Default.FailureThreshold = 1
	cfg.Default.RecoveryTimeout = 20 * time.Millisecond
	cfg.Default.SuccessThreshold = 2
	brk, _ := New(cfg, WithoutMaintenance())
	defer brk.Close(context.Background())

	ctx := context.Background()
	brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
		return nil, errors.New("fail")
	})
	time.Sleep(40 * time.Millisecond)

	ok := func(ctx context.Context) (any, error) { return "ok", nil }
	brk.Execute(ctx, "svc", ok)

	status, _ := brk.Status("svc")
	if status.State != StateHalfOpen {
		t.Fatalf("Expected still half_open after one success, got: %v", status.State)
	}

	brk.Execute(ctx, "svc", ok)

	status, _ = brk.Status("svc")
	if status.State != StateClosed {
		t.Fatalf("Expected closed after success threshold, got: %v", status.State)
	}
	if status.FailureCount != 0 {
		t.Errorf("Expected failure count reset to 0, got: %d", status.FailureCount)
	}
}

// TestFailureCountDecay 测试闭合状态下成功对失败计数的衰减
func TestFailureCountDecay(t *testing.T) {
	brk, _ := New(DefaultConfig(), WithoutMaintenance())
	defer brk.Close(context.Background())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
			return nil, errors.New("fail")
		})
	}
	brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
		return "ok", nil
	})

	status, _ := brk.Status("svc")
	if status.FailureCount != 1 {
		t.Errorf("Expected failure count decayed to 1, got: %d", status.FailureCount)
	}
}

// TestCallTimeout 测试调用超时按失败处理
func TestCallTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Default.CallTimeout = 50 * time.Millisecond
	brk, _ := New(cfg, WithoutMaintenance())
	defer brk.Close(context.Background())

	start := time.Now()
	_, err := brk.Execute(context.Background(), "slow-svc", func(ctx context.Context) (any, error) {
		select {
		case <-time.After(500 * time.Millisecond):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	elapsed := time.Since(start)

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("Expected TimeoutError, got: %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("TimeoutError should match context.DeadlineExceeded")
	}
	if elapsed > 200*time.Millisecond {
		t.Errorf("Execute should return at timeout, took: %v", elapsed)
	}

	snap, _ := brk.Metrics("slow-svc")
	if snap.TimeoutCount != 1 {
		t.Errorf("Expected timeout count 1, got: %d", snap.TimeoutCount)
	}
	if snap.FailureCount != 1 {
		t.Errorf("Expected failure count 1, got: %d", snap.FailureCount)
	}
}

// TestCallerCancellationNotRecorded 测试调用方主动取消不计入统计
func TestCallerCancellationNotRecorded(t *testing.T) {
	brk, _ := New(DefaultConfig(), WithoutMaintenance())
	defer brk.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}

	snap, _ := brk.Metrics("svc")
	if snap.TotalRequests != 0 {
		t.Errorf("Cancelled call must not be recorded, got total: %d", snap.TotalRequests)
	}
}

// TestStaticFallbackPrecedence 测试静态降级值优先于缓存响应
func TestStaticFallbackPrecedence(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Services = map[string]Policy{
		"svc": {HasFallback: true, StaticFallback: "static-value"},
	}
	brk, _ := New(cfg, WithoutMaintenance())
	defer brk.Close(context.Background())

	ctx := context.Background()
	// 先产生一个可缓存的成功响应
	brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
		return "live-value", nil
	})
	brk.ForceState("svc", StateOpen, "test")

	res, err := brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Expected fallback result, got error: %v", err)
	}
	if res.Source != SourceStaticFallback {
		t.Errorf("Expected SourceStaticFallback, got: %v", res.Source)
	}
	if res.Value != "static-value" {
		t.Errorf("Expected static value, got: %v", res.Value)
	}
}

// TestCachedResponseFallback 测试最近成功响应作为降级结果
func TestCachedResponseFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Services = map[string]Policy{
		"svc": {HasFallback: true},
	}
	brk, _ := New(cfg, WithoutMaintenance())
	defer brk.Close(context.Background())

	ctx := context.Background()
	brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
		return "cached-value", nil
	})
	brk.ForceState("svc", StateOpen, "test")

	res, err := brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Expected fallback result, got error: %v", err)
	}
	if res.Source != SourceCachedResponse {
		t.Errorf("Expected SourceCachedResponse, got: %v", res.Source)
	}
	if res.Value != "cached-value" {
		t.Errorf("Expected cached value, got: %v", res.Value)
	}
}

// TestCallerFallbackValue 测试调用方兜底值
func TestCallerFallbackValue(t *testing.T) {
	brk, _ := New(DefaultConfig(), WithoutMaintenance())
	defer brk.Close(context.Background())

	brk.ForceState("svc", StateOpen, "test")

	res, err := brk.Execute(context.Background(), "svc",
		func(ctx context.Context) (any, error) { return nil, nil },
		WithFallbackValue("spare"))
	if err != nil {
		t.Fatalf("Expected caller fallback, got error: %v", err)
	}
	if res.Source != SourceCallerFallback {
		t.Errorf("Expected SourceCallerFallback, got: %v", res.Source)
	}
	if res.Value != "spare" {
		t.Errorf("Expected 'spare', got: %v", res.Value)
	}
}

// TestDegradedModeSignal 测试降级模式信号
func TestDegradedModeSignal(t *testing.T) {
	brk, _ := New(DefaultConfig(), WithoutMaintenance())
	defer brk.Close(context.Background())

	brk.SetDegradedMode("svc", true)
	brk.ForceState("svc", StateOpen, "test")

	res, err := brk.Execute(context.Background(), "svc", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Expected degraded signal, got error: %v", err)
	}
	if res.Source != SourceDegraded {
		t.Errorf("Expected SourceDegraded, got: %v", res.Source)
	}
	if res.Value != nil {
		t.Errorf("Degraded signal must carry no payload, got: %v", res.Value)
	}

	// 状态不受降级模式开关影响
	status, _ := brk.Status("svc")
	if status.State != StateOpen {
		t.Errorf("SetDegradedMode must not change state, got: %v", status.State)
	}

	brk.SetDegradedMode("svc", false)
	_, err = brk.Execute(context.Background(), "svc", func(ctx context.Context) (any, error) {
		return nil, nil
	})
	if !errors.Is(err, ErrOpenState) {
		t.Fatalf("Expected ErrOpenState after disabling degraded mode, got: %v", err)
	}
}

// TestFailedCallFallsBack 测试失败调用走降级链
func TestFailedCallFallsBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Services = map[string]Policy{
		"svc": {HasFallback: true, StaticFallback: "plan-b"},
	}
	brk, _ := New(cfg, WithoutMaintenance())
	defer brk.Close(context.Background())

	res, err := brk.Execute(context.Background(), "svc", func(ctx context.Context) (any, error) {
		return nil, errors.New("backend error")
	})
	if err != nil {
		t.Fatalf("Expected fallback to absorb failure, got: %v", err)
	}
	if res.Source != SourceStaticFallback {
		t.Errorf("Expected SourceStaticFallback, got: %v", res.Source)
	}
}

// TestForceStateInvalid 测试非法目标状态被拒绝
func TestForceStateInvalid(t *testing.T) {
	brk, _ := New(DefaultConfig(), WithoutMaintenance())
	defer brk.Close(context.Background())

	err := brk.ForceState("svc", State(42), "test")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("Expected ErrInvalidState, got: %v", err)
	}
}

// TestForceStateRecordsHistory 测试强制切换写入历史
func TestForceStateRecordsHistory(t *testing.T) {
	brk, _ := New(DefaultConfig(), WithoutMaintenance())
	defer brk.Close(context.Background())

	brk.ForceState("svc", StateOpen, "maintenance window")

	history := brk.History("svc")
	if len(history) != 1 {
		t.Fatalf("Expected one history record, got: %d", len(history))
	}
	if history[0].To != StateOpen {
		t.Errorf("Expected transition to open, got: %v", history[0].To)
	}
	if history[0].Reason != "operator override: maintenance window" {
		t.Errorf("Unexpected reason: %q", history[0].Reason)
	}
	if history[0].ID == "" {
		t.Error("Record should carry a unique ID")
	}
}

// TestHistoryBounded 测试历史记录有界
func TestHistoryBounded(t *testing.T) {
	brk, _ := New(DefaultConfig(), WithoutMaintenance())
	defer brk.Close(context.Background())

	for i := 0; i < 50; i++ {
		brk.ForceState("svc", StateOpen, "flip")
		brk.ForceState("svc", StateClosed, "flop")
	}

	history := brk.History("svc")
	if len(history) != historyLimit {
		t.Errorf("Expected history capped at %d, got: %d", historyLimit, len(history))
	}
	// 最新记录在末尾
	if history[len(history)-1].Reason != "operator override: flop" {
		t.Errorf("Expected newest record last, got: %q", history[len(history)-1].Reason)
	}
}

// TestConcurrentFailuresSingleTransition 测试并发失败只产生一次转换
func TestConcurrentFailuresSingleTransition(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Default.FailureThreshold = 5
	brk, _ := New(cfg, WithoutMaintenance())
	defer brk.Close(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			brk.Execute(context.Background(), "svc", func(ctx context.Context) (any, error) {
				return nil, errors.New("fail")
			})
		}()
	}
	wg.Wait()

	var opens int
	for _, record := range brk.History("svc") {
		if record.To == StateOpen {
			opens++
			if record.FailureCount != 5 {
				t.Errorf("Expected transition at failure count 5, got: %d", record.FailureCount)
			}
		}
	}
	if opens != 1 {
		t.Fatalf("Expected exactly one open transition, got: %d", opens)
	}
}

// TestSlowCallRateOpens 测试慢调用率熔断
func TestSlowCallRateOpens(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Services = map[string]Policy{
		"svc": {
			FailureThreshold:          100,
			SlowCallDurationThreshold: time.Millisecond,
			SlowCallRateThreshold:     0.5,
			MinimumThroughput:         5,
		},
	}
	brk, _ := New(cfg, WithoutMaintenance())
	defer brk.Close(context.Background())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
			time.Sleep(5 * time.Millisecond)
			return "ok", nil
		})
	}

	status, _ := brk.Status("svc")
	if status.State != StateOpen {
		t.Fatalf("Expected open on slow call rate, got: %v", status.State)
	}

	snap, _ := brk.Metrics("svc")
	if snap.SlowCallCount != 5 {
		t.Errorf("Expected 5 slow calls, got: %d", snap.SlowCallCount)
	}
	if snap.FailureCount != 0 {
		t.Errorf("Slow successes must not count as failures, got: %d", snap.FailureCount)
	}
}

// TestCloseResetsWindowKeepsLifetime 测试闭合时窗口清空但生命周期计数保留
func TestCloseResetsWindowKeepsLifetime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Default.FailureThreshold = 2
	cfg.Default.RecoveryTimeout = 20 * time.Millisecond
	cfg.Default.SuccessThreshold = 1
	brk, _ := New(cfg, WithoutMaintenance())
	defer brk.Close(context.Background())

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
			return nil, errors.New("fail")
		})
	}
	time.Sleep(40 * time.Millisecond)
	brk.Execute(ctx, "svc", func(ctx context.Context) (any, error) {
		return "ok", nil
	})

	status, _ := brk.Status("svc")
	if status.State != StateClosed {
		t.Fatalf("Expected closed, got: %v", status.State)
	}

	snap, _ := brk.Metrics("svc")
	if snap.TotalRequests != 3 {
		t.Errorf("Lifetime totals must survive recovery, got: %d", snap.TotalRequests)
	}
	if snap.WindowFailureRate != 0 {
		t.Errorf("Window must be reset on close, got rate: %f", snap.WindowFailureRate)
	}
}

// TestFullRecoveryCycle 测试完整的熔断恢复周期
func TestFullRecoveryCycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Services = map[string]Policy{
		"payment": {
			FailureThreshold: 3,
			RecoveryTimeout:  200 * time.Millisecond,
			SuccessThreshold: 2,
			CallTimeout:      100 * time.Millisecond,
		},
	}
	brk, _ := New(cfg, WithoutMaintenance())
	defer brk.Close(context.Background())

	ctx := context.Background()
	fail := func(ctx context.Context) (any, error) { return nil, errors.New("fail") }
	ok := func(ctx context.Context) (any, error) { return "ok", nil }

	for i := 0; i < 3; i++ {
		brk.Execute(ctx, "payment", fail)
	}
	status, _ := brk.Status("payment")
	if status.State != StateOpen {
		t.Fatalf("Expected open, got: %v", status.State)
	}

	time.Sleep(250 * time.Millisecond)

	if res, err := brk.Execute(ctx, "payment", ok); err != nil || res.Source != SourceLive {
		t.Fatalf("Expected live result in half-open, got: %v, %v", res, err)
	}
	if res, err := brk.Execute(ctx, "payment", ok); err != nil || res.Source != SourceLive {
		t.Fatalf("Expected live result, got: %v, %v", res, err)
	}

	status, _ = brk.Status("payment")
	if status.State != StateClosed {
		t.Fatalf("Expected closed after recovery cycle, got: %v", status.State)
	}

	history := brk.History("payment")
	if len(history) != 3 {
		t.Fatalf("Expected closed->open->half_open->closed (3 records), got: %d", len(history))
	}
}

// TestStatusesAndMetricsAll 测试全量快照
func TestStatusesAndMetricsAll(t *testing.T) {
	brk, _ := New(DefaultConfig(), WithoutMaintenance())
	defer brk.Close(context.Background())

	ctx := context.Background()
	brk.Execute(ctx, "svc-a", func(ctx context.Context) (any, error) { return "a", nil })
	brk.Execute(ctx, "svc-b", func(ctx context.Context) (any, error) { return "b", nil })

	statuses := brk.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("Expected 2 statuses, got: %d", len(statuses))
	}

	all := brk.MetricsAll()
	if all["svc-a"].SuccessCount != 1 || all["svc-b"].SuccessCount != 1 {
		t.Error("Expected one success per service")
	}
}

// TestStatusEmptyServiceName 测试查询接口的空服务名
func TestStatusEmptyServiceName(t *testing.T) {
	brk, _ := New(DefaultConfig(), WithoutMaintenance())
	defer brk.Close(context.Background())

	if _, err := brk.Status(""); !errors.Is(err, ErrServiceNameEmpty) {
		t.Errorf("Status: expected ErrServiceNameEmpty, got: %v", err)
	}
	if _, err := brk.Metrics(""); !errors.Is(err, ErrServiceNameEmpty) {
		t.Errorf("Metrics: expected ErrServiceNameEmpty, got: %v", err)
	}
	if err := brk.ForceState("", StateOpen, "test"); !errors.Is(err, ErrServiceNameEmpty) {
		t.Errorf("ForceState: expected ErrServiceNameEmpty, got: %v", err)
	}
}

// TestParseState 测试状态字符串解析
func TestParseState(t *testing.T) {
	cases := []struct {
		input string
		want  State
		ok    bool
	}{
		{"closed", StateClosed, true},
		{"half_open", StateHalfOpen, true},
		{"open", StateOpen, true},
		{"banana", StateClosed, false},
	}
	for _, tc := range cases {
		got, err := ParseState(tc.input)
		if tc.ok && (err != nil || got != tc.want) {
			t.Errorf("ParseState(%q) = %v, %v; want %v", tc.input, got, err, tc.want)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidState) {
			t.Errorf("ParseState(%q): expected ErrInvalidState, got: %v", tc.input, err)
		}
	}
}

// TestCloseIdempotent 测试重复关闭
func TestCloseIdempotent(t *testing.T) {
	brk, _ := New(DefaultConfig())

	ctx := context.Background()
	if err := brk.Close(ctx); err != nil {
		t.Fatalf("First close should succeed, got: %v", err)
	}
	if err := brk.Close(ctx); err != nil {
		t.Fatalf("Second close should be a no-op, got: %v", err)
	}
}
