package ws

import (
	"cmp"
	"sync"
	"sync/atomic"
	"time"
)

// EventType 事件名，同时作为事件流记录的 type 字段
type EventType string

const (
	// EventConnected 连接注册完成
	EventConnected EventType = "connection.opened"
	// EventDisconnected 连接注销
	EventDisconnected EventType = "connection.closed"
	// EventRoomJoined 加入房间
	EventRoomJoined EventType = "room.joined"
	// EventRoomLeft 离开房间（含连接断开引起的离开）
	EventRoomLeft EventType = "room.left"
	// EventChatMessage 聊天消息已广播
	EventChatMessage EventType = "chat.message"
	// EventDeadPeer 心跳超时被终止
	EventDeadPeer EventType = "connection.dead"
	// EventProtocolError 入站帧被丢弃
	EventProtocolError EventType = "protocol.error"
)

// Event 中继内部事件。Data 随类型而定：连接事件为远端地址，协议错误为错误文本
type Event struct {
	Type      EventType
	ConnID    string
	RoomID    string
	UserID    string
	MessageID string
	Data      any
	Time      time.Time
}

type EventHandler func(Event)

// lifecycle 连接建立与断开事件，订阅方据此维护在线状态，队列满时允许短暂等待
func (e Event) lifecycle() bool {
	return e.Type == EventConnected || e.Type == EventDisconnected
}

const lifecycleWait = 100 * time.Millisecond

type delivery struct {
	handler EventHandler
	event   Event
}

// EventBus 把中继事件异步交给订阅者。固定数量的 worker 共享一个有界队列，
// Publish 不会因为订阅者慢而拖住读循环；队列满时事件被丢弃并计数
type EventBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler

	queue   chan delivery
	quit    chan struct{}
	wg      sync.WaitGroup
	closed  atomic.Bool
	dropped atomic.Int64
}

// NewEventBus workers、queueSize 不大于 0 时分别取 10 和 1000
func NewEventBus(workers, queueSize int) *EventBus {
	workers = cmp.Or(max(workers, 0), 10)
	queueSize = cmp.Or(max(queueSize, 0), 1000)

	eb := &EventBus{
		handlers: make(map[EventType][]EventHandler),
		queue:    make(chan delivery, queueSize),
		quit:     make(chan struct{}),
	}
	eb.wg.Add(workers)
	for range workers {
		go eb.run()
	}
	return eb
}

func (eb *EventBus) run() {
	defer eb.wg.Done()
	for {
		select {
		case d := <-eb.queue:
			eb.deliver(d)
		case <-eb.quit:
			return
		}
	}
}

// deliver 订阅者 panic 只影响这一次投递
func (eb *EventBus) deliver(d delivery) {
	defer func() {
		if recover() != nil {
			eb.dropped.Add(1)
		}
	}()
	d.handler(d.event)
}

func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
	eb.mu.Unlock()
}

// Publish 为每个订阅者排队一次投递。Close 之后调用无效果
func (eb *EventBus) Publish(event Event) {
	if eb.closed.Load() {
		return
	}
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	eb.mu.RLock()
	handlers := eb.handlers[event.Type]
	eb.mu.RUnlock()

	for _, h := range handlers {
		if !eb.enqueue(delivery{handler: h, event: event}) {
			eb.dropped.Add(1)
		}
	}
}

func (eb *EventBus) enqueue(d delivery) bool {
	select {
	case eb.queue <- d:
		return true
	default:
	}
	if !d.event.lifecycle() {
		return false
	}
	t := time.NewTimer(lifecycleWait)
	defer t.Stop()
	select {
	case eb.queue <- d:
		return true
	case <-t.C:
		return false
	}
}

// Close 停止 worker，队列中尚未投递的事件被丢弃。queue 不关闭，
// 并发的 Publish 最多写进一个无人消费的缓冲
func (eb *EventBus) Close() {
	if !eb.closed.CompareAndSwap(false, true) {
		return
	}
	close(eb.quit)
	eb.wg.Wait()
}

// DroppedEvents 因队列满或订阅者 panic 而未送达的事件数
func (eb *EventBus) DroppedEvents() int64 {
	return eb.dropped.Load()
}
