package breaker

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/peer"
)

// KeyFunc 从 gRPC 调用上下文中提取熔断服务名
type KeyFunc func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string

// ServiceLevelKey 服务级别维度（默认）
// 整个目标服务共享一个熔断器
// 返回示例: "etcd:///payment-service"
func ServiceLevelKey() KeyFunc {
	return func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
		return cc.Target()
	}
}

// MethodLevelKey 方法级别维度
// 每个 gRPC 方法独立熔断，适合服务内方法健康度差异大的场景
// 返回示例: "/payment.Gateway/Charge"
func MethodLevelKey() KeyFunc {
	return func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
		return fullMethod
	}
}

// BackendLevelKey 后端实例维度
// 从 Peer 信息提取真实后端地址，连接未建立时回退到服务名
// 返回示例: "10.0.0.1:9001"
func BackendLevelKey() KeyFunc {
	return func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			if addr := p.Addr.String(); addr != "" {
				return addr
			}
		}
		return cc.Target()
	}
}

// CompositeKey 组合多个维度，使用 @ 分隔
// 返回示例: "etcd:///payment-service@10.0.0.1:9001"
func CompositeKey(primary KeyFunc, secondary ...KeyFunc) KeyFunc {
	return func(ctx context.Context, fullMethod string, cc *grpc.ClientConn) string {
		key := primary(ctx, fullMethod, cc)
		for _, kf := range secondary {
			key += "@" + kf(ctx, fullMethod, cc)
		}
		return key
	}
}
