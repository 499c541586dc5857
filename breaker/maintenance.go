package breaker

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
)

// startMaintenance 启动后台维护任务
//
// 四个任务各自独立运行：状态巡检、指标快照、恢复探测、
// 降级载荷新鲜度检查。任一任务 panic 只丢弃当次迭代。
func (r *registry) startMaintenance() {
	r.maintCtx, r.maintCancel = context.WithCancel(context.Background())

	loops := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{"state-monitor", stateMonitorInterval, r.monitorStates},
		{"metrics-snapshot", metricsSnapshotInterval, r.snapshotMetrics},
		{"recovery-probe", recoveryProbeInterval, r.probeRecovery},
		{"fallback-freshness", fallbackFreshnessInterval, r.checkFallbackFreshness},
	}

	for _, loop := range loops {
		r.maintWG.Add(1)
		go r.runLoop(loop.name, loop.interval, loop.run)
	}
}

// runLoop 周期性执行单个维护任务直到 Close
func (r *registry) runLoop(name string, interval time.Duration, run func(context.Context)) {
	defer r.maintWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Debug("maintenance loop started",
		clog.String("loop", name),
		clog.Duration("interval", interval))

	for {
		select {
		case <-r.maintCtx.Done():
			r.logger.Debug("maintenance loop stopped", clog.String("loop", name))
			return
		case <-ticker.C:
			r.safeRun(name, run)
		}
	}
}

// safeRun 执行单次迭代，panic 只丢弃本次迭代
func (r *registry) safeRun(name string, run func(context.Context)) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("maintenance loop iteration panicked",
				clog.String("loop", name),
				clog.Any("panic", p))
		}
	}()
	run(r.maintCtx)
}

// monitorStates 巡检全部实例，推进无新调用时的 OPEN→HALF_OPEN 老化
func (r *registry) monitorStates(ctx context.Context) {
	r.instances.Range(func(_, val any) bool {
		ins := val.(*instance)
		_, record := ins.evaluate()
		r.emitStateChange(record)
		return true
	})
}

// snapshotMetrics 发布聚合指标并输出运行摘要日志
func (r *registry) snapshotMetrics(ctx context.Context) {
	var total, open int
	r.instances.Range(func(_, val any) bool {
		ins := val.(*instance)
		total++
		if ins.currentState() == StateOpen {
			open++
		}

		snap := ins.metrics()
		if r.failureRateGauge != nil {
			r.failureRateGauge.Set(ctx, snap.WindowFailureRate, metrics.L(LabelService, ins.service))
		}
		if r.slowCallRateGauge != nil {
			r.slowCallRateGauge.Set(ctx, snap.SlowCallRate, metrics.L(LabelService, ins.service))
		}
		return true
	})

	if total > 0 {
		r.logger.Info("breaker metrics snapshot",
			clog.Int("services", total),
			clog.Int("open", open))
	}
}

// probeRecovery 输出 HALF_OPEN 实例的恢复进度诊断日志
func (r *registry) probeRecovery(ctx context.Context) {
	r.instances.Range(func(_, val any) bool {
		ins := val.(*instance)
		status := ins.status()
		if status.State != StateHalfOpen {
			return true
		}

		r.logger.Info("breaker probing recovery",
			clog.String("service", ins.service),
			clog.Int("consecutive_successes", status.SuccessCount),
			clog.Int("success_threshold", ins.policy.SuccessThreshold),
			clog.Duration("in_half_open", time.Since(status.StateChangedAt)))
		return true
	})
}

// checkFallbackFreshness 标记超龄降级载荷，只标记不删除
func (r *registry) checkFallbackFreshness(ctx context.Context) {
	r.instances.Range(func(_, val any) bool {
		ins := val.(*instance)
		if !ins.policy.HasFallback {
			return true
		}

		payload, err := r.resolver.storeGet(ctx, ins.service)
		if err != nil {
			return true
		}

		stale := time.Since(payload.StoredAt) > fallbackStaleAfter
		ins.setFallbackStale(stale)
		if stale {
			r.logger.Warn("fallback payload is stale",
				clog.String("service", ins.service),
				clog.Time("stored_at", payload.StoredAt))
		}
		return true
	})
}
