package breaker

import (
	"context"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ceyewan/aegis/xerrors"
)

// FailureKind 失败分类，用于指标维度与关键事件，不改变错误的传播语义
type FailureKind int

const (
	// KindConnection 连接类错误（默认分类）
	KindConnection FailureKind = iota
	// KindTimeout 超时
	KindTimeout
	// KindHTTP HTTP 状态错误
	KindHTTP
	// KindRateLimit 被限流
	KindRateLimit
	// KindAuthentication 鉴权失败
	KindAuthentication
	// KindServiceUnavailable 服务不可用
	KindServiceUnavailable
)

// String 返回失败分类的字符串表示
func (k FailureKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection_error"
	case KindHTTP:
		return "http_error"
	case KindRateLimit:
		return "rate_limit"
	case KindAuthentication:
		return "authentication_error"
	case KindServiceUnavailable:
		return "service_unavailable"
	default:
		return "unknown"
	}
}

// classifierRule 结构化分类规则：按序匹配，首个命中生效
type classifierRule struct {
	match func(error) (FailureKind, bool)
}

// classifierRules 按优先级排列的分类规则
// 基于类型与错误链匹配，不做错误消息的子串匹配
var classifierRules = []classifierRule{
	{match: matchTimeout},
	{match: matchGRPC},
	{match: matchHTTP},
	{match: matchNet},
}

// Classify 对失败进行结构化分类，未命中任何规则时归为 KindConnection
func Classify(err error) FailureKind {
	for _, rule := range classifierRules {
		if kind, ok := rule.match(err); ok {
			return kind
		}
	}
	return KindConnection
}

// matchTimeout 匹配超时：组件自身的 TimeoutError、context 超时
func matchTimeout(err error) (FailureKind, bool) {
	var te *TimeoutError
	if xerrors.As(err, &te) {
		return KindTimeout, true
	}
	if xerrors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, true
	}
	return 0, false
}

// matchGRPC 按 gRPC 状态码分类
func matchGRPC(err error) (FailureKind, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return 0, false
	}
	switch st.Code() {
	case codes.OK:
		return 0, false
	case codes.DeadlineExceeded:
		return KindTimeout, true
	case codes.Unavailable:
		return KindServiceUnavailable, true
	case codes.ResourceExhausted:
		return KindRateLimit, true
	case codes.Unauthenticated, codes.PermissionDenied:
		return KindAuthentication, true
	default:
		return KindHTTP, true
	}
}

// matchHTTP 按 HTTP 状态码分类
func matchHTTP(err error) (FailureKind, bool) {
	var he *HTTPError
	if !xerrors.As(err, &he) {
		return 0, false
	}
	switch {
	case he.StatusCode == 429:
		return KindRateLimit, true
	case he.StatusCode == 401 || he.StatusCode == 403:
		return KindAuthentication, true
	case he.StatusCode == 503:
		return KindServiceUnavailable, true
	default:
		return KindHTTP, true
	}
}

// matchNet 匹配网络层错误
func matchNet(err error) (FailureKind, bool) {
	var ne net.Error
	if !xerrors.As(err, &ne) {
		return 0, false
	}
	if ne.Timeout() {
		return KindTimeout, true
	}
	return KindConnection, true
}
