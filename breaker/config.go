package breaker

import "time"

// Config 熔断器组件配置
type Config struct {
	// Default 默认策略（应用到所有未单独配置的服务）
	Default Policy `mapstructure:"default" json:"default" yaml:"default"`

	// Services 按服务名配置不同的策略（可选）
	// 零值字段继承默认策略
	Services map[string]Policy `mapstructure:"services" json:"services" yaml:"services"`
}

// Policy 单个服务的熔断策略（创建后不可变，运维接口除外）
type Policy struct {
	// FailureThreshold 绝对失败次数阈值，达到后熔断（默认: 5）
	FailureThreshold int `mapstructure:"failure_threshold" json:"failure_threshold" yaml:"failure_threshold"`

	// RecoveryTimeout 熔断后的恢复等待时间，超时后进入半开探测（默认: 60s）
	RecoveryTimeout time.Duration `mapstructure:"recovery_timeout" json:"recovery_timeout" yaml:"recovery_timeout"`

	// SuccessThreshold 半开状态下连续成功次数，达到后闭合（默认: 3）
	SuccessThreshold int `mapstructure:"success_threshold" json:"success_threshold" yaml:"success_threshold"`

	// CallTimeout 单次调用的硬超时（默认: 10s）
	CallTimeout time.Duration `mapstructure:"call_timeout" json:"call_timeout" yaml:"call_timeout"`

	// SlowCallDurationThreshold 慢调用判定时长（默认: 1s）
	// 慢调用计入慢调用率，但本身不算失败
	SlowCallDurationThreshold time.Duration `mapstructure:"slow_call_duration_threshold" json:"slow_call_duration_threshold" yaml:"slow_call_duration_threshold"`

	// SlowCallRateThreshold 慢调用率阈值 (0.0-1.0)，超过后熔断（默认: 0.5）
	SlowCallRateThreshold float64 `mapstructure:"slow_call_rate_threshold" json:"slow_call_rate_threshold" yaml:"slow_call_rate_threshold"`

	// MinimumThroughput 最小请求数，未达到前不触发比率类熔断规则（默认: 10）
	MinimumThroughput int `mapstructure:"minimum_throughput" json:"minimum_throughput" yaml:"minimum_throughput"`

	// WindowSize 滑动窗口大小（统计最近 N 次请求，默认: 100）
	WindowSize int `mapstructure:"window_size" json:"window_size" yaml:"window_size"`

	// HasFallback 是否启用降级：缓存最近成功响应并参与降级链
	HasFallback bool `mapstructure:"has_fallback" json:"has_fallback" yaml:"has_fallback"`

	// StaticFallback 静态降级值，配置后为降级链的第一优先级
	StaticFallback any `mapstructure:"static_fallback" json:"static_fallback" yaml:"static_fallback"`

	// DegradedMode 降级模式：降级链无结果时向调用方发出降级信号而非错误
	DegradedMode bool `mapstructure:"degraded_mode" json:"degraded_mode" yaml:"degraded_mode"`

	// Critical 关键服务：失败时额外发出高优先级事件
	Critical bool `mapstructure:"critical" json:"critical" yaml:"critical"`
}

// DefaultPolicy 返回默认策略
//
// 未显式配置的服务按此策略自动创建实例，保证对未预料的依赖默认安全。
func DefaultPolicy() Policy {
	return Policy{
		FailureThreshold:          5,
		RecoveryTimeout:           60 * time.Second,
		SuccessThreshold:          3,
		CallTimeout:               10 * time.Second,
		SlowCallDurationThreshold: time.Second,
		SlowCallRateThreshold:     0.5,
		MinimumThroughput:         10,
		WindowSize:                100,
	}
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Default:  DefaultPolicy(),
		Services: make(map[string]Policy),
	}
}

// validate 校验并填充默认值
func (c *Config) validate() error {
	def := DefaultPolicy()
	c.Default = mergePolicy(def, c.Default)
	if c.Default.SlowCallRateThreshold < 0 || c.Default.SlowCallRateThreshold > 1 {
		return ErrInvalidConfig
	}
	for _, p := range c.Services {
		if p.SlowCallRateThreshold < 0 || p.SlowCallRateThreshold > 1 {
			return ErrInvalidConfig
		}
	}
	return nil
}

// policyFor 返回指定服务的生效策略（服务特定策略覆盖默认策略）
func (c *Config) policyFor(serviceName string) Policy {
	policy := c.Default
	if svcPolicy, ok := c.Services[serviceName]; ok {
		policy = mergePolicy(policy, svcPolicy)
	}
	return policy
}

// mergePolicy 合并策略，服务特定策略的非零字段覆盖默认策略
func mergePolicy(defaultPolicy, servicePolicy Policy) Policy {
	result := defaultPolicy

	if servicePolicy.FailureThreshold > 0 {
		result.FailureThreshold = servicePolicy.FailureThreshold
	}
	if servicePolicy.RecoveryTimeout > 0 {
		result.RecoveryTimeout = servicePolicy.RecoveryTimeout
	}
	if servicePolicy.SuccessThreshold > 0 {
		result.SuccessThreshold = servicePolicy.SuccessThreshold
	}
	if servicePolicy.CallTimeout > 0 {
		result.CallTimeout = servicePolicy.CallTimeout
	}
	if servicePolicy.SlowCallDurationThreshold > 0 {
		result.SlowCallDurationThreshold = servicePolicy.SlowCallDurationThreshold
	}
	if servicePolicy.SlowCallRateThreshold > 0 {
		result.SlowCallRateThreshold = servicePolicy.SlowCallRateThreshold
	}
	if servicePolicy.MinimumThroughput > 0 {
		result.MinimumThroughput = servicePolicy.MinimumThroughput
	}
	if servicePolicy.WindowSize > 0 {
		result.WindowSize = servicePolicy.WindowSize
	}
	if servicePolicy.StaticFallback != nil {
		result.StaticFallback = servicePolicy.StaticFallback
	}
	// 布尔字段总是使用服务特定策略的值
	result.HasFallback = servicePolicy.HasFallback || defaultPolicy.HasFallback
	result.DegradedMode = servicePolicy.DegradedMode || defaultPolicy.DegradedMode
	result.Critical = servicePolicy.Critical || defaultPolicy.Critical

	return result
}
