package ws

import (
	"context"
	"time"

	"github.com/tokmz/roomcast/pkg/logger"
	"go.uber.org/zap"
)

// Heartbeat 心跳监控
//
// 每个周期：上一轮探测后仍未响应的连接被终止并注销，
// 其余连接标记为待响应并发送 ping，pong 到达时由读协程重新标记存活。
type Heartbeat struct {
	registry *Registry
	interval time.Duration
	logger   logger.Logger
	onDead   func(c *Conn)
}

// NewHeartbeat 创建心跳监控
func NewHeartbeat(registry *Registry, interval time.Duration, log logger.Logger) *Heartbeat {
	if log == nil {
		log = logger.Nop()
	}
	return &Heartbeat{registry: registry, interval: interval, logger: log}
}

// OnDead 设置死亡连接回调，在注销前调用
func (h *Heartbeat) OnDead(fn func(c *Conn)) {
	h.onDead = fn
}

// Run 按固定周期探测，直到 ctx 取消
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Probe()
		}
	}
}

// Probe 执行一轮探测，返回本轮终止的连接数
func (h *Heartbeat) Probe() int {
	terminated := 0
	for _, c := range h.registry.Snapshot() {
		if !h.registry.IsAlive(c) {
			h.logger.Warn("terminating dead peer",
				zap.String("conn_id", c.id),
				zap.String("remote_addr", c.remoteAddr),
				zap.Error(ErrDeadPeer),
			)
			if h.onDead != nil {
				h.onDead(c)
			}
			c.terminate()
			h.registry.Unregister(c)
			terminated++
			continue
		}

		c.alive.Store(false)
		if err := c.ping(); err != nil {
			// 写失败的连接在下一轮被终止
			h.logger.Debug("ping failed", zap.String("conn_id", c.id), zap.Error(err))
		}
	}
	return terminated
}
