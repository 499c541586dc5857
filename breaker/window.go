package breaker

import (
	"sort"
	"time"
)

// sample 单次调用的窗口样本
type sample struct {
	at      time.Time
	latency time.Duration
	success bool
	slow    bool
	kind    FailureKind
}

// window 滑动指标窗口，环形缓冲区实现
//
// 窗口由所属的熔断器实例独占，所有访问都在实例锁内串行化，
// 因此这里不再加锁。
//
// 生命周期计数器与窗口样本分离：计数器只增不减，
// 窗口样本在缓冲区写满后逐个被覆盖。
// 不变量: total == success + failure（每次完成的调用恰好被归类一次）。
type window struct {
	size    int
	samples []sample
	index   int
	count   int // 窗口当前样本数（未满时 < size）

	// 生命周期计数
	total   int64
	success int64
	failure int64
	timeout int64
	slow    int64
}

// newWindow 创建滑动窗口
func newWindow(size int) *window {
	if size <= 0 {
		size = 100
	}
	return &window{
		size:    size,
		samples: make([]sample, size),
	}
}

// recordSuccess 记录一次成功调用
func (w *window) recordSuccess(at time.Time, latency time.Duration, slow bool) {
	w.total++
	w.success++
	if slow {
		w.slow++
	}
	w.push(sample{at: at, latency: latency, success: true, slow: slow})
}

// recordFailure 记录一次失败调用
func (w *window) recordFailure(at time.Time, latency time.Duration, kind FailureKind) {
	w.total++
	w.failure++
	if kind == KindTimeout {
		w.timeout++
	}
	w.push(sample{at: at, latency: latency, kind: kind})
}

// push 写入环形缓冲区，写满后覆盖最旧样本
func (w *window) push(s sample) {
	w.samples[w.index] = s
	w.index = (w.index + 1) % w.size
	if w.count < w.size {
		w.count++
	}
}

// resetSamples 清空窗口样本，生命周期计数保留
// 用于 HALF_OPEN→CLOSED，避免恢复后残留的旧失败立刻再次触发比率熔断
func (w *window) resetSamples() {
	w.index = 0
	w.count = 0
	for i := range w.samples {
		w.samples[i] = sample{}
	}
}

// occupancy 窗口当前样本数
func (w *window) occupancy() int {
	return w.count
}

// failureRate 生命周期失败率
func (w *window) failureRate() float64 {
	if w.total == 0 {
		return 0
	}
	return float64(w.failure) / float64(w.total)
}

// windowFailureRate 仅基于窗口样本的失败率
func (w *window) windowFailureRate() float64 {
	if w.count == 0 {
		return 0
	}
	failures := 0
	for i := 0; i < w.count; i++ {
		if !w.samples[i].success {
			failures++
		}
	}
	return float64(failures) / float64(w.count)
}

// slowCallRate 窗口内慢调用占比
func (w *window) slowCallRate() float64 {
	if w.count == 0 {
		return 0
	}
	slow := 0
	for i := 0; i < w.count; i++ {
		if w.samples[i].slow {
			slow++
		}
	}
	return float64(slow) / float64(w.count)
}

// avgLatency 窗口内平均延迟
func (w *window) avgLatency() time.Duration {
	if w.count == 0 {
		return 0
	}
	var sum time.Duration
	for i := 0; i < w.count; i++ {
		sum += w.samples[i].latency
	}
	return sum / time.Duration(w.count)
}

// percentiles 一次性计算窗口内延迟的 p50/p95/p99
func (w *window) percentiles() (p50, p95, p99 time.Duration) {
	if w.count == 0 {
		return 0, 0, 0
	}
	latencies := make([]time.Duration, w.count)
	for i := 0; i < w.count; i++ {
		latencies[i] = w.samples[i].latency
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	return latencies[rank(0.50, w.count)],
		latencies[rank(0.95, w.count)],
		latencies[rank(0.99, w.count)]
}

// rank 计算分位数在有序样本中的下标（最近位次法）
func rank(p float64, n int) int {
	idx := int(p*float64(n)+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}
