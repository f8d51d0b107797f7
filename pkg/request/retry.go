package request

import (
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig 重试策略。MaxAttempts 是总尝试次数（含第一次）
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// RetryNonIdempotent 为 false 时 POST、PATCH 只发一次
	RetryNonIdempotent bool
	// RetryIf 为空时重试网络错误、429 与 5xx
	RetryIf func(resp *http.Response, err error) bool
}

// DefaultRetryConfig 3 次尝试，100ms 起步指数退避，上限 2s
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
	}
}

func retryable(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
}

// policy 补全零值字段后的副本
func (rc RetryConfig) policy() RetryConfig {
	if rc.MaxAttempts <= 0 {
		rc.MaxAttempts = 1
	}
	if rc.InitialDelay <= 0 {
		rc.InitialDelay = 100 * time.Millisecond
	}
	if rc.MaxDelay < rc.InitialDelay {
		rc.MaxDelay = rc.InitialDelay
	}
	if rc.RetryIf == nil {
		rc.RetryIf = retryable
	}
	return rc
}

func (rc RetryConfig) allows(method string) bool {
	if rc.RetryNonIdempotent {
		return true
	}
	return method != http.MethodPost && method != http.MethodPatch
}

// delay 第 n 次重试（从 1 开始）前的等待。服务端给了 Retry-After 秒数时以它为准，
// 否则 InitialDelay*2^(n-1)，封顶 MaxDelay，再乘 [0.75, 1.25) 的抖动
func (rc RetryConfig) delay(n int, resp *http.Response) time.Duration {
	if resp != nil {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs >= 0 {
			return min(time.Duration(secs)*time.Second, rc.MaxDelay)
		}
	}
	d := rc.InitialDelay << (n - 1)
	if d <= 0 || d > rc.MaxDelay {
		d = rc.MaxDelay
	}
	return time.Duration(float64(d) * (0.75 + rand.Float64()/2))
}
