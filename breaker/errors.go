package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/ceyewan/aegis/xerrors"
)

// 错误定义
var (
	// ErrServiceNameEmpty 服务名为空
	ErrServiceNameEmpty = xerrors.New("breaker: service name is empty")

	// ErrOpenState 熔断器处于打开状态且无降级可用
	ErrOpenState = xerrors.New("breaker: circuit breaker is open")

	// ErrInvalidState 非法的熔断器状态
	ErrInvalidState = xerrors.New("breaker: invalid state, must be one of: closed, open, half_open")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.New("breaker: invalid configuration")
)

// OpenError 熔断打开且降级链无结果时返回的错误
//
// 通过 errors.Is(err, ErrOpenState) 匹配。
type OpenError struct {
	Service string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("breaker: circuit breaker is open for service %q", e.Service)
}

func (e *OpenError) Is(target error) bool {
	return target == ErrOpenState
}

// TimeoutError 被包装操作超过 CallTimeout 时返回的错误
//
// 通过 errors.Is(err, context.DeadlineExceeded) 匹配。
type TimeoutError struct {
	Service string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("breaker: operation on service %q timed out after %s", e.Service, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == context.DeadlineExceeded
}

// HTTPError HTTP 状态错误包装，供失败分类器做结构化匹配
//
// 调用方在 Operation 中将非 2xx 响应包装为 HTTPError，
// 分类器据此区分限流、鉴权失败与服务不可用。
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("breaker: http error: %s", e.Status)
	}
	return fmt.Sprintf("breaker: http error: status %d", e.StatusCode)
}
