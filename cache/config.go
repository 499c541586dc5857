package cache

import "time"

// Config 缓存组件统一配置
type Config struct {
	// Driver 缓存驱动: "memory" | "redis" (默认 "memory")
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`

	// Prefix 全局 Key 前缀 (e.g., "aegis:fallback:")
	Prefix string `mapstructure:"prefix" json:"prefix" yaml:"prefix"`

	// Serializer 序列化器: "json" | "msgpack" (仅 redis 驱动使用)
	Serializer string `mapstructure:"serializer" json:"serializer" yaml:"serializer"`

	// Memory 进程内缓存配置
	Memory *MemoryConfig `mapstructure:"memory" json:"memory" yaml:"memory"`

	// Redis Redis 驱动配置
	Redis *RedisConfig `mapstructure:"redis" json:"redis" yaml:"redis"`
}

// MemoryConfig 进程内缓存配置
type MemoryConfig struct {
	// Capacity 缓存最大容量（条目数，默认：10000）
	Capacity int `mapstructure:"capacity" json:"capacity" yaml:"capacity"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr         string        `mapstructure:"addr" json:"addr" yaml:"addr"`
	Password     string        `mapstructure:"password" json:"password" yaml:"password"`
	DB           int           `mapstructure:"db" json:"db" yaml:"db"`
	PoolSize     int           `mapstructure:"pool_size" json:"pool_size" yaml:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" json:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`
}

// setDefaults 填充 Redis 连接默认值
func (c *RedisConfig) setDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}
