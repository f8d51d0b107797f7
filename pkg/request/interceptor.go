package request

import (
	"context"
	"net/http"

	"github.com/tokmz/roomcast/pkg/logger"
	"go.uber.org/zap"
)

// Interceptor 每次尝试前后各调用一次，返回错误会中止本次请求
type Interceptor interface {
	BeforeRequest(ctx context.Context, req *http.Request) error
	AfterResponse(ctx context.Context, resp *Response) error
}

type loggingInterceptor struct {
	log logger.Logger
}

// NewLoggingInterceptor 请求记 debug；响应 5xx 记 warn，其余 debug
func NewLoggingInterceptor(log logger.Logger) Interceptor {
	return &loggingInterceptor{log: log}
}

func (l *loggingInterceptor) BeforeRequest(ctx context.Context, req *http.Request) error {
	l.log.DebugContext(ctx, "http request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()),
	)
	return nil
}

func (l *loggingInterceptor) AfterResponse(ctx context.Context, resp *Response) error {
	fields := []zap.Field{
		zap.String("method", resp.Request.Method),
		zap.String("url", resp.Request.URL.String()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", resp.Duration),
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		l.log.WarnContext(ctx, "http response", fields...)
	} else {
		l.log.DebugContext(ctx, "http response", fields...)
	}
	return nil
}
