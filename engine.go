// Package roomcast 是 relayd 与 chatstore 共用的 HTTP 骨架：
// 基于 gin 的路由、统一的 JSON 信封、访问日志，以及随 context 结束的优雅关机。
package roomcast

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/tokmz/roomcast/pkg/logger"
	"go.uber.org/zap"
)

type Engine struct {
	cfg    *Config
	gin    *gin.Engine
	server *http.Server
	log    logger.Logger
}

// New 创建 Engine，已挂载 panic 恢复中间件
func New(opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	// gin 的 mode 是进程级的，显式的 debug 不覆盖已设置的其他模式
	if gin.Mode() == gin.DebugMode || cfg.Mode != gin.DebugMode {
		gin.SetMode(cfg.Mode)
	}
	gin.DefaultWriter = io.Discard
	gin.DefaultErrorWriter = io.Discard

	e := &Engine{cfg: cfg, gin: gin.New(), log: cfg.Logger.Named("http")}
	e.gin.Use(adapt(recovery(e.log))...)
	if len(cfg.TrustedProxies) > 0 {
		if err := e.gin.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			e.log.Warn("ignore trusted proxies", zap.Strings("proxies", cfg.TrustedProxies), zap.Error(err))
		}
	}
	return e
}

// Default 在 New 的基础上加访问日志
func Default(opts ...Option) *Engine {
	e := New(opts...)
	e.gin.Use(adapt(accessLog(e.log, e.cfg.AccessLogSkip))...)
	return e
}

func (e *Engine) Use(mw ...HandlerFunc) {
	e.gin.Use(adapt(mw...)...)
}

func (e *Engine) Group(prefix string, mw ...HandlerFunc) *RouterGroup {
	return &RouterGroup{g: e.gin.Group(prefix, adapt(mw...)...)}
}

// RouterGroup 返回根路由组
func (e *Engine) RouterGroup() *RouterGroup {
	return &RouterGroup{g: &e.gin.RouterGroup}
}

// Handler 暴露底层 http.Handler，便于 httptest
func (e *Engine) Handler() http.Handler {
	return e.gin
}

// Serve 监听 Config.Addr，ctx 结束后优雅关机
func (e *Engine) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.cfg.Addr)
	if err != nil {
		return err
	}
	return e.ServeListener(ctx, ln)
}

// ServeListener 在 ln 上服务直到 ctx 结束或 Serve 出错。
// ctx 结束后在 ShutdownTimeout 内完成关机
func (e *Engine) ServeListener(ctx context.Context, ln net.Listener) error {
	e.server = &http.Server{
		Handler:        e.gin,
		ReadTimeout:    e.cfg.ReadTimeout,
		WriteTimeout:   e.cfg.WriteTimeout,
		IdleTimeout:    e.cfg.IdleTimeout,
		MaxHeaderBytes: e.cfg.MaxHeaderBytes,
	}
	for _, r := range e.gin.Routes() {
		e.log.Debug("route", zap.String("method", r.Method), zap.String("path", r.Path))
	}
	e.log.Info("listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("mode", e.cfg.Mode),
		zap.String("go", runtime.Version()),
	)

	served := make(chan error, 1)
	go func() { served <- e.server.Serve(ln) }()

	select {
	case err := <-served:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	e.log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		e.log.Error("shutdown incomplete", zap.Error(err))
		return err
	}
	e.log.Info("server stopped")
	return nil
}

// Shutdown 依次执行 BeforeShutdown、http.Server.Shutdown、AfterShutdown。
// 未启动时直接返回
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.server == nil {
		return nil
	}
	if e.cfg.BeforeShutdown != nil {
		e.cfg.BeforeShutdown(ctx)
	}
	err := e.server.Shutdown(ctx)
	if e.cfg.AfterShutdown != nil {
		e.cfg.AfterShutdown()
	}
	return err
}
