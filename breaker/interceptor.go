package breaker

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/xerrors"
)

// InterceptorOption 拦截器选项函数类型
type InterceptorOption func(*interceptorConfig)

// interceptorConfig 拦截器内部配置（非导出）
type interceptorConfig struct {
	keyFunc KeyFunc
}

// WithKeyFunc 设置熔断维度提取函数
func WithKeyFunc(fn KeyFunc) InterceptorOption {
	return func(cfg *interceptorConfig) {
		cfg.keyFunc = fn
	}
}

// WithMethodLevelKey 按 gRPC 方法熔断
func WithMethodLevelKey() InterceptorOption {
	return WithKeyFunc(MethodLevelKey())
}

// WithBackendLevelKey 按后端实例熔断，推荐用于负载均衡场景
func WithBackendLevelKey() InterceptorOption {
	return WithKeyFunc(BackendLevelKey())
}

func newInterceptorConfig(opts []InterceptorOption) *interceptorConfig {
	cfg := &interceptorConfig{keyFunc: ServiceLevelKey()}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// UnaryClientInterceptor 返回 gRPC 一元调用客户端拦截器
// 为每个 gRPC 调用提供熔断保护
//
// 熔断打开且降级链无结果时，调用以 codes.Unavailable 失败。
//
// 使用示例:
//
//	brk, _ := breaker.New(cfg, breaker.WithLogger(logger))
//	conn, _ := grpc.NewClient(
//		"localhost:9001",
//		grpc.WithUnaryInterceptor(brk.UnaryClientInterceptor()),
//	)
func (r *registry) UnaryClientInterceptor(opts ...InterceptorOption) grpc.UnaryClientInterceptor {
	cfg := newInterceptorConfig(opts)

	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		serviceName := cfg.keyFunc(ctx, method, cc)

		r.logger.Debug("unary call with circuit breaker",
			clog.String("service", serviceName),
			clog.String("method", method))

		_, err := r.Execute(ctx, serviceName, func(ctx context.Context) (any, error) {
			return nil, invoker(ctx, method, req, reply, cc, callOpts...)
		})
		return translateOpenError(err, serviceName)
	}
}

// StreamClientInterceptor 返回 gRPC 流式调用客户端拦截器
// 熔断保护覆盖流的建立，不覆盖后续的消息收发
func (r *registry) StreamClientInterceptor(opts ...InterceptorOption) grpc.StreamClientInterceptor {
	cfg := newInterceptorConfig(opts)

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		serviceName := cfg.keyFunc(ctx, method, cc)

		r.logger.Debug("stream call with circuit breaker",
			clog.String("service", serviceName),
			clog.String("method", method))

		res, err := r.Execute(ctx, serviceName, func(ctx context.Context) (any, error) {
			return streamer(ctx, desc, cc, method, callOpts...)
		})
		if err != nil {
			return nil, translateOpenError(err, serviceName)
		}

		stream, ok := res.Value.(grpc.ClientStream)
		if !ok {
			// 降级链提供的替代值对流式调用没有意义
			return nil, status.Errorf(codes.Unavailable, "circuit breaker is open for %s", serviceName)
		}
		return stream, nil
	}
}

// translateOpenError 将熔断打开错误映射为 gRPC 状态码
func translateOpenError(err error, serviceName string) error {
	if err == nil {
		return nil
	}
	if xerrors.Is(err, ErrOpenState) {
		return status.Errorf(codes.Unavailable, "circuit breaker is open for %s", serviceName)
	}
	return err
}
