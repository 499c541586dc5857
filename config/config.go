package config

import (
	"context"
	"fmt"
)

// New 创建配置加载器，不立即加载
func New(opts ...Option) (Loader, error) {
	return newLoader(opts...)
}

// Load 一步创建并加载配置
func Load(ctx context.Context, opts ...Option) (Loader, error) {
	l, err := newLoader(opts...)
	if err != nil {
		return nil, err
	}
	if err := l.Load(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// MustLoad 类似 Load，但出错时 panic。仅用于初始化阶段。
func MustLoad(opts ...Option) Loader {
	l, err := Load(context.Background(), opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return l
}
