package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody 限制写入错误信息的响应体长度。
const maxErrorBody = 512

// StatusError 表示 Orchestrator 返回了非 2xx 状态码。
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string

	// reauth 表示 401 后已丢弃缓存 token，重试会重新登录。
	reauth bool
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: orchestrator returned status %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Retryable 报告该状态码是否属于瞬时错误。
func (e *StatusError) Retryable() bool {
	return e.reauth || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func newStatusError(method, path string, resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(body)),
	}
}

// NetworkError 表示连接失败或单次调用超时。
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsRetryable 判断错误是否值得在单次调用层面重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return false
}
