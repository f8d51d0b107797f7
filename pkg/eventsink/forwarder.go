package eventsink

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/ws"
	"go.uber.org/zap"
)

// Subscriber 可订阅中继事件的对象（*ws.Server、*ws.EventBus）
type Subscriber interface {
	Subscribe(eventType ws.EventType, handler ws.EventHandler)
}

// ForwardedEvents 默认导出的事件类型
var ForwardedEvents = []ws.EventType{
	ws.EventConnected,
	ws.EventDisconnected,
	ws.EventRoomJoined,
	ws.EventRoomLeft,
	ws.EventChatMessage,
	ws.EventDeadPeer,
}

// Forwarder 把中继事件转发到 Sink
// 导出失败只记录日志，不影响中继
type Forwarder struct {
	sink    Sink
	log     logger.Logger
	timeout time.Duration
	failed  atomic.Int64
	sent    atomic.Int64
}

// NewForwarder 创建转发器
func NewForwarder(sink Sink, log logger.Logger, timeout time.Duration) *Forwarder {
	if log == nil {
		log = logger.Nop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Forwarder{sink: sink, log: log.Named("eventsink"), timeout: timeout}
}

// Attach 订阅事件，types 为空时使用 ForwardedEvents
func (f *Forwarder) Attach(sub Subscriber, types ...ws.EventType) {
	if len(types) == 0 {
		types = ForwardedEvents
	}
	for _, t := range types {
		sub.Subscribe(t, f.handle)
	}
}

func (f *Forwarder) handle(e ws.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	r := FromEvent(e)
	if err := f.sink.Publish(ctx, r); err != nil {
		f.failed.Add(1)
		f.log.Warn("export event failed",
			zap.String("type", r.Type),
			zap.String("room_id", r.RoomID),
			zap.Error(err),
		)
		return
	}
	f.sent.Add(1)
}

// Sent 成功导出的事件数
func (f *Forwarder) Sent() int64 { return f.sent.Load() }

// Failed 导出失败的事件数
func (f *Forwarder) Failed() int64 { return f.failed.Load() }
