package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/xerrors"
)

// registry 熔断器实现（非导出）
//
// 按服务名管理熔断器实例，实例在首次使用时惰性创建，
// 进程生命周期内不会被隐式销毁。
type registry struct {
	cfg      *Config
	logger   clog.Logger
	meter    metrics.Meter
	sink     Sink
	resolver *resolver

	// 服务级熔断器实例管理
	instances sync.Map // map[string]*instance

	// 指标
	requestsCounter     metrics.Counter
	successCounter      metrics.Counter
	failuresCounter     metrics.Counter
	rejectsCounter      metrics.Counter
	fallbacksCounter    metrics.Counter
	stateChangesCounter metrics.Counter
	stateGauge          metrics.Gauge
	failureRateGauge    metrics.Gauge
	slowCallRateGauge   metrics.Gauge
	durationHistogram   metrics.Histogram

	// 后台维护任务生命周期
	maintCtx    context.Context
	maintCancel context.CancelFunc
	maintWG     sync.WaitGroup
	closeOnce   sync.Once
}

// newRegistry 创建熔断器注册表（内部函数）
// 注意：cfg 已在 New() 中调用 validate() 设置了默认值，logger 已在 WithLogger() 中处理
func newRegistry(cfg *Config, opt *options) (Breaker, error) {
	r := &registry{
		cfg:      cfg,
		logger:   opt.logger,
		meter:    opt.meter,
		sink:     opt.sink,
		resolver: newResolver(opt.fallbackStore, opt.logger),
	}
	if r.sink == nil {
		r.sink = newLogSink(opt.logger)
	}

	if r.meter != nil {
		r.requestsCounter, _ = r.meter.Counter(MetricRequestsTotal, "Total number of calls through the breaker")
		r.successCounter, _ = r.meter.Counter(MetricSuccessTotal, "Number of successful calls")
		r.failuresCounter, _ = r.meter.Counter(MetricFailuresTotal, "Number of failed calls")
		r.rejectsCounter, _ = r.meter.Counter(MetricRejectsTotal, "Number of calls rejected while open")
		r.fallbacksCounter, _ = r.meter.Counter(MetricFallbacksTotal, "Number of calls answered by the fallback chain")
		r.stateChangesCounter, _ = r.meter.Counter(MetricStateChanges, "Number of state transitions")
		r.stateGauge, _ = r.meter.Gauge(MetricState, "Current breaker state (closed=0 half_open=1 open=2)")
		r.failureRateGauge, _ = r.meter.Gauge(MetricFailureRate, "Windowed failure rate")
		r.slowCallRateGauge, _ = r.meter.Gauge(MetricSlowCallRate, "Windowed slow call rate")
		r.durationHistogram, _ = r.meter.Histogram(MetricRequestDuration, "Call duration in seconds", metrics.WithUnit("s"))
	}

	if !opt.disableMaintenance {
		r.startMaintenance()
	}

	return r, nil
}

// Execute 通过指定服务的熔断器执行操作
func (r *registry) Execute(ctx context.Context, serviceName string, op Operation, opts ...ExecOption) (*Result, error) {
	if serviceName == "" {
		return nil, ErrServiceNameEmpty
	}

	execOpt := execOptions{}
	for _, o := range opts {
		o(&execOpt)
	}

	ins := r.instance(serviceName)

	state, record := ins.evaluate()
	r.emitStateChange(record)

	if state == StateOpen {
		if r.rejectsCounter != nil {
			r.rejectsCounter.Inc(ctx, metrics.L(LabelService, serviceName))
		}
		if res, ok := r.resolveFallback(ctx, ins, &execOpt); ok {
			return res, nil
		}
		return nil, &OpenError{Service: serviceName}
	}

	if r.requestsCounter != nil {
		r.requestsCounter.Inc(ctx, metrics.L(LabelService, serviceName))
	}

	value, latency, err := r.runWithTimeout(ctx, ins, op)

	// 调用方主动取消不计入熔断统计
	if err != nil && ctx.Err() != nil && !xerrors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	if r.durationHistogram != nil {
		r.durationHistogram.Record(ctx, latency.Seconds(), metrics.L(LabelService, serviceName))
	}

	if err == nil {
		return r.onSuccess(ctx, ins, value, latency), nil
	}
	return r.onFailure(ctx, ins, &execOpt, err, latency)
}

// onSuccess 记录成功调用，必要时缓存并持久化降级载荷
func (r *registry) onSuccess(ctx context.Context, ins *instance, value any, latency time.Duration) *Result {
	if r.successCounter != nil {
		r.successCounter.Inc(ctx, metrics.L(LabelService, ins.service))
	}

	record := ins.recordSuccess(latency)
	r.emitStateChange(record)

	if ins.policy.HasFallback {
		ins.cacheResponse(value)
		go r.resolver.persist(ins.service, value)
	}

	return &Result{Value: value, Source: SourceLive}
}

// onFailure 记录失败调用并尝试降级，降级无结果时原样传播错误
func (r *registry) onFailure(ctx context.Context, ins *instance, execOpt *execOptions, err error, latency time.Duration) (*Result, error) {
	kind := Classify(err)

	if r.failuresCounter != nil {
		r.failuresCounter.Inc(ctx,
			metrics.L(LabelService, ins.service),
			metrics.L(LabelFailureKind, kind.String()))
	}

	record := ins.recordFailure(latency, kind)
	r.emitStateChange(record)

	r.logger.Warn("protected call failed",
		clog.String("service", ins.service),
		clog.String("failure_kind", kind.String()),
		clog.Duration("latency", latency),
		clog.Error(err))

	if ins.policy.Critical {
		r.dispatchCriticalFailure(ins.service, kind, err.Error())
	}

	if res, ok := r.resolveFallback(ctx, ins, execOpt); ok {
		return res, nil
	}
	return nil, err
}

// resolveFallback 走降级链并维护降级指标
func (r *registry) resolveFallback(ctx context.Context, ins *instance, execOpt *execOptions) (*Result, bool) {
	res, ok := r.resolver.resolve(ctx, ins, execOpt.fallbackValue, execOpt.hasFallbackValue)
	if ok && r.fallbacksCounter != nil {
		r.fallbacksCounter.Inc(ctx,
			metrics.L(LabelService, ins.service),
			metrics.L(LabelSource, res.Source.String()))
	}
	return res, ok
}

// runWithTimeout 在 CallTimeout 限制下执行操作
//
// 操作在独立 goroutine 中运行，超时后的迟到结果通过带缓冲通道
// 丢弃，不会被二次计入统计。
func (r *registry) runWithTimeout(ctx context.Context, ins *instance, op Operation) (any, time.Duration, error) {
	callCtx, cancel := context.WithTimeout(ctx, ins.policy.CallTimeout)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	start := time.Now()
	go func() {
		value, err := op(callCtx)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		latency := time.Since(start)
		// 操作自身因 CallTimeout 到期返回的超时错误，归一化为 TimeoutError
		if out.err != nil && ctx.Err() == nil && xerrors.Is(out.err, context.DeadlineExceeded) {
			return nil, latency, &TimeoutError{Service: ins.service, Timeout: ins.policy.CallTimeout}
		}
		return out.value, latency, out.err
	case <-callCtx.Done():
		latency := time.Since(start)
		if ctx.Err() != nil {
			return nil, latency, ctx.Err()
		}
		return nil, latency, &TimeoutError{Service: ins.service, Timeout: ins.policy.CallTimeout}
	}
}

// Status 获取指定服务的状态快照
func (r *registry) Status(serviceName string) (*Status, error) {
	if serviceName == "" {
		return nil, ErrServiceNameEmpty
	}

	ins := r.instance(serviceName)
	_, record := ins.evaluate()
	r.emitStateChange(record)
	return ins.status(), nil
}

// Statuses 获取全部服务的状态快照
func (r *registry) Statuses() map[string]*Status {
	out := make(map[string]*Status)
	r.instances.Range(func(key, val any) bool {
		out[key.(string)] = val.(*instance).status()
		return true
	})
	return out
}

// Metrics 获取指定服务的指标快照
func (r *registry) Metrics(serviceName string) (*MetricsSnapshot, error) {
	if serviceName == "" {
		return nil, ErrServiceNameEmpty
	}
	return r.instance(serviceName).metrics(), nil
}

// MetricsAll 获取全部服务的指标快照
func (r *registry) MetricsAll() map[string]*MetricsSnapshot {
	out := make(map[string]*MetricsSnapshot)
	r.instances.Range(func(key, val any) bool {
		out[key.(string)] = val.(*instance).metrics()
		return true
	})
	return out
}

// History 获取指定服务的状态变更历史
func (r *registry) History(serviceName string) []StateChangeRecord {
	if serviceName == "" {
		return nil
	}
	return r.instance(serviceName).stateHistory()
}

// ForceState 运维强制状态切换
func (r *registry) ForceState(serviceName string, to State, reason string) error {
	if serviceName == "" {
		return ErrServiceNameEmpty
	}
	if to != StateClosed && to != StateHalfOpen && to != StateOpen {
		return ErrInvalidState
	}

	ins := r.instance(serviceName)
	record := ins.forceState(to, "operator override: "+reason)

	r.logger.Warn("breaker state forced by operator",
		clog.String("service", serviceName),
		clog.String("to", to.String()),
		clog.String("reason", reason))

	r.emitStateChange(record)
	return nil
}

// SetDegradedMode 切换指定服务的降级模式开关
func (r *registry) SetDegradedMode(serviceName string, enabled bool) error {
	if serviceName == "" {
		return ErrServiceNameEmpty
	}

	r.instance(serviceName).setDegradedMode(enabled)
	r.logger.Info("degraded mode toggled",
		clog.String("service", serviceName),
		clog.Bool("enabled", enabled))
	return nil
}

// Close 停止后台维护任务并等待退出
func (r *registry) Close(ctx context.Context) error {
	var err error
	r.closeOnce.Do(func() {
		if r.maintCancel != nil {
			r.maintCancel()
		}

		done := make(chan struct{})
		go func() {
			r.maintWG.Wait()
			close(done)
		}()

		select {
		case <-done:
			r.logger.Info("circuit breaker registry closed")
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	return err
}

// instance 获取或创建指定服务的熔断器实例
func (r *registry) instance(serviceName string) *instance {
	if val, ok := r.instances.Load(serviceName); ok {
		return val.(*instance)
	}

	ins := newInstance(serviceName, r.cfg.policyFor(serviceName))
	actual, loaded := r.instances.LoadOrStore(serviceName, ins)
	if !loaded {
		r.logger.Info("breaker instance created",
			clog.String("service", serviceName),
			clog.Int("failure_threshold", ins.policy.FailureThreshold),
			clog.Duration("recovery_timeout", ins.policy.RecoveryTimeout),
			clog.Bool("has_fallback", ins.policy.HasFallback),
			clog.Bool("critical", ins.policy.Critical))
		if r.stateGauge != nil {
			r.stateGauge.Set(context.Background(), float64(StateClosed),
				metrics.L(LabelService, serviceName))
		}
	}
	return actual.(*instance)
}

// emitStateChange 派发状态变更事件并更新状态指标
//
// 回调以 fire-and-forget 方式执行，panic 被捕获并记录，
// 不会影响调用链路。
func (r *registry) emitStateChange(record *StateChangeRecord) {
	if record == nil {
		return
	}

	ctx := context.Background()
	if r.stateChangesCounter != nil {
		r.stateChangesCounter.Inc(ctx,
			metrics.L(LabelService, record.Service),
			metrics.L(LabelFromState, record.From.String()),
			metrics.L(LabelToState, record.To.String()))
	}
	if r.stateGauge != nil {
		r.stateGauge.Set(ctx, float64(record.To), metrics.L(LabelService, record.Service))
	}

	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("state change sink panicked",
					clog.String("service", record.Service),
					clog.Any("panic", p))
			}
		}()
		r.sink.OnStateChange(*record)
	}()
}

// dispatchCriticalFailure 派发关键服务失败事件
func (r *registry) dispatchCriticalFailure(service string, kind FailureKind, details string) {
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("critical failure sink panicked",
					clog.String("service", service),
					clog.Any("panic", p))
			}
		}()
		r.sink.OnCriticalFailure(service, kind, details)
	}()
}
