// Package protocol 定义中继服务与客户端之间的 JSON 帧格式
//
// 每一帧都是一个扁平 JSON 对象，由 type 字段区分类型：
//
//	{"type":"JOIN_ROOM","roomId":"r1","userId":"u1"}
//	{"type":"ROOM_MEMBERS_UPDATE","roomId":"r1","members":["u1","u2"]}
//
// 服务端与客户端（pkg/session）共用本包。
package protocol

import (
	"time"

	"github.com/gorilla/websocket"
)

// Type 帧类型标签
type Type string

const (
	// TypeJoinRoom 加入房间（入站）
	TypeJoinRoom Type = "JOIN_ROOM"
	// TypeLeaveRoom 离开房间（入站）
	TypeLeaveRoom Type = "LEAVE_ROOM"
	// TypeChatMessage 聊天消息（入站为发送请求，出站为广播）
	TypeChatMessage Type = "CHAT_MESSAGE"
	// TypeWelcome 连接建立后的欢迎消息（出站）
	TypeWelcome Type = "WELCOME"
	// TypeUserJoined 用户加入（出站）
	TypeUserJoined Type = "USER_JOINED"
	// TypeUserLeft 用户离开（出站）
	TypeUserLeft Type = "USER_LEFT"
	// TypeRoomMembersUpdate 房间在线成员全量列表（出站）
	TypeRoomMembersUpdate Type = "ROOM_MEMBERS_UPDATE"
)

// 关闭码
const (
	CloseNormal          = websocket.CloseNormalClosure
	CloseGoingAway       = websocket.CloseGoingAway
	CloseAbnormal        = websocket.CloseAbnormalClosure
	ClosePolicyViolation = websocket.ClosePolicyViolation
)

// DefaultUserName 未提供显示名时使用
const DefaultUserName = "Anonymous"

// TimestampLayout 聊天消息时间戳格式（UTC，毫秒精度）
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp 按 TimestampLayout 格式化时间
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp 解析 TimestampLayout 格式的时间戳
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// ShouldReconnect 判断一次关闭是否需要客户端重连
// 仅正常关闭（1000）不重连
func ShouldReconnect(err error) bool {
	if err == nil {
		return false
	}
	return !websocket.IsCloseError(err, CloseNormal)
}

// Frame 任意协议帧
type Frame interface {
	FrameType() Type
}

// Inbound 客户端发往中继的帧
type Inbound interface {
	Frame
	// Validate 校验必填字段
	Validate() error
	inbound()
}

// Outbound 中继发往客户端的帧
type Outbound interface {
	Frame
	outbound()
}

// JoinRoom 加入房间请求
type JoinRoom struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// LeaveRoom 离开房间请求
type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

// SendChat 客户端发送的聊天消息，服务端补全 ID 和时间戳后以 ChatMessage 广播
type SendChat struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
	Content  string `json:"content"`
}

// Welcome 欢迎消息
type Welcome struct {
	Message string `json:"message"`
}

// UserJoined 用户加入房间
type UserJoined struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// UserLeft 用户离开房间
type UserLeft struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

// RoomMembersUpdate 房间去重后的在线用户列表，始终是全量
type RoomMembersUpdate struct {
	RoomID  string   `json:"roomId"`
	Members []string `json:"members"`
}

// ChatMessage 广播的聊天消息，创建后不可变
type ChatMessage struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// NewChatMessage 由发送请求生成广播消息
func NewChatMessage(in SendChat, id string, now time.Time) ChatMessage {
	name := in.UserName
	if name == "" {
		name = DefaultUserName
	}
	return ChatMessage{
		ID:        id,
		RoomID:    in.RoomID,
		UserID:    in.UserID,
		UserName:  name,
		Content:   in.Content,
		Timestamp: FormatTimestamp(now),
	}
}

func (JoinRoom) FrameType() Type          { return TypeJoinRoom }
func (LeaveRoom) FrameType() Type         { return TypeLeaveRoom }
func (SendChat) FrameType() Type          { return TypeChatMessage }
func (Welcome) FrameType() Type           { return TypeWelcome }
func (UserJoined) FrameType() Type        { return TypeUserJoined }
func (UserLeft) FrameType() Type          { return TypeUserLeft }
func (RoomMembersUpdate) FrameType() Type { return TypeRoomMembersUpdate }
func (ChatMessage) FrameType() Type       { return TypeChatMessage }

func (JoinRoom) inbound()  {}
func (LeaveRoom) inbound() {}
func (SendChat) inbound()  {}

func (Welcome) outbound()           {}
func (UserJoined) outbound()        {}
func (UserLeft) outbound()          {}
func (RoomMembersUpdate) outbound() {}
func (ChatMessage) outbound()       {}

// Validate 校验 JOIN_ROOM
func (m JoinRoom) Validate() error {
	if m.RoomID == "" {
		return ErrInvalidFrame.WithMessage("JOIN_ROOM: roomId is required")
	}
	if m.UserID == "" {
		return ErrInvalidFrame.WithMessage("JOIN_ROOM: userId is required")
	}
	return nil
}

// Validate 校验 LEAVE_ROOM
func (m LeaveRoom) Validate() error {
	if m.RoomID == "" {
		return ErrInvalidFrame.WithMessage("LEAVE_ROOM: roomId is required")
	}
	return nil
}

// Validate 校验 CHAT_MESSAGE
func (m SendChat) Validate() error {
	switch {
	case m.RoomID == "":
		return ErrInvalidFrame.WithMessage("CHAT_MESSAGE: roomId is required")
	case m.UserID == "":
		return ErrInvalidFrame.WithMessage("CHAT_MESSAGE: userId is required")
	case m.Content == "":
		return ErrInvalidFrame.WithMessage("CHAT_MESSAGE: content is required")
	}
	return nil
}
