package ws

import (
	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/protocol"
)

var (
	// ErrInvalidConfig 配置非法
	ErrInvalidConfig = errors.New(2000, "ws: invalid config", 500)

	// ErrProtocol 入站帧无法解析，帧被丢弃，连接保持
	ErrProtocol = protocol.ErrMalformed
	// ErrMembership 操作的房间不包含该连接，按空操作处理
	ErrMembership = errors.New(2002, "ws: connection is not a member of the room", 400)
	// ErrDeadPeer 心跳超时
	ErrDeadPeer = errors.New(2003, "ws: peer missed heartbeat", 500)
	// ErrTransport 底层连接读写失败
	ErrTransport = errors.New(2004, "ws: transport failure", 500)
	// ErrNotRegistered 连接未注册
	ErrNotRegistered = errors.New(2005, "ws: connection not registered", 400)
	// ErrTooManyConnections 连接数达到上限
	ErrTooManyConnections = errors.New(2006, "ws: too many connections", 503)
	// ErrConnectionClosed 连接已关闭
	ErrConnectionClosed = errors.New(2007, "ws: connection closed", 410)
	// ErrQueueFull 发送队列已满，帧被丢弃
	ErrQueueFull = errors.New(2008, "ws: send queue full", 503)
	// ErrRoomFull 房间人数达到上限
	ErrRoomFull = errors.New(2011, "ws: room is full", 409)
	// ErrServerClosed 服务已关闭
	ErrServerClosed = errors.New(2012, "ws: server closed", 503)
)

// isProtocolError 判断是否为可容忍的协议错误（计入无效帧）
func isProtocolError(err error) bool {
	return errors.Is(err, ErrProtocol) || errors.Is(err, protocol.ErrInvalidFrame)
}
