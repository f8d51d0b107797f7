package roomcast

import (
	"fmt"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/logger"
	"go.uber.org/zap"
)

// accessLog 每个请求结束后写一条 "request" 日志，5xx 记 Error，4xx 记 Warn
func accessLog(log logger.Logger, skip []string) HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *Context) {
		r := c.Request()
		if _, ok := skipped[r.URL.Path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer().Status()
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Int("bytes", c.Writer().Size()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		ctx := c.RequestContext()
		switch {
		case status >= 500:
			log.ErrorContext(ctx, "request", fields...)
		case status >= 400:
			log.WarnContext(ctx, "request", fields...)
		default:
			log.InfoContext(ctx, "request", fields...)
		}
	}
}

// recovery 把 panic 转成 ErrServer 响应。客户端断开导致的写失败只记一行日志
func recovery(log logger.Logger) HandlerFunc {
	return func(c *Context) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			ctx := c.RequestContext()
			if err, ok := v.(error); ok && clientGone(err) {
				log.WarnContext(ctx, "client disconnected", zap.Error(err), zap.String("path", c.Request().URL.Path))
				c.Abort()
				return
			}

			log.ErrorContext(ctx, "panic recovered",
				zap.String("panic", fmt.Sprint(v)),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.ByteString("stack", debug.Stack()),
			)
			c.RespondError(errors.ErrServer)
			c.Abort()
		}()
		c.Next()
	}
}

func clientGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
