package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Conn 一条客户端物理连接
//
// 发送队列从不关闭，注销后 Send 直接返回 ErrConnectionClosed，
// 因此并发广播与注销不会触发向已关闭 channel 写入的 panic。
type Conn struct {
	id           string
	ws           *websocket.Conn
	remoteAddr   string
	writeTimeout time.Duration

	send chan []byte
	done chan struct{}

	alive        atomic.Bool
	registered   atomic.Bool
	unregistered atomic.Bool
	closeOnce    sync.Once
	releaseOnce  sync.Once

	// 以下字段由 RoomTable.mu 保护
	rooms    map[string]string // roomID -> userID
	detached bool
}

func newConn(id string, ws *websocket.Conn, queueSize int, writeTimeout time.Duration) *Conn {
	c := &Conn{
		id:           id,
		ws:           ws,
		writeTimeout: writeTimeout,
		send:         make(chan []byte, queueSize),
		done:         make(chan struct{}),
		rooms:        make(map[string]string),
	}
	if ws != nil {
		c.remoteAddr = ws.RemoteAddr().String()
	}
	return c
}

// ID 连接 ID
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr 远端地址
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// Done 注销后关闭
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Send 非阻塞入队一帧
func (c *Conn) Send(data []byte) error {
	if c.unregistered.Load() {
		return ErrConnectionClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// writePump 独占写出普通帧，控制帧走 WriteControl
func (c *Conn) writePump() {
	defer c.terminate()
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

// ping 发送传输层心跳探测
func (c *Conn) ping() error {
	if c.ws == nil {
		return ErrTransport
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

// closeWith 发送关闭帧后断开
func (c *Conn) closeWith(code int, reason string) {
	if c.ws != nil {
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
	}
	c.terminate()
}

// terminate 直接关闭底层连接，不做关闭握手
func (c *Conn) terminate() {
	c.closeOnce.Do(func() {
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// release 停止写协程
func (c *Conn) release() {
	c.releaseOnce.Do(func() { close(c.done) })
}
