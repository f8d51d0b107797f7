package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type header struct {
	Type Type `json:"type"`
}

// Encode 将帧编码为带 type 字段的扁平 JSON 对象
func Encode(f Frame) ([]byte, error) {
	if f == nil {
		return nil, ErrInvalidFrame.WithMessage("nil frame")
	}
	body, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(f.FrameType()) + 12)
	buf.WriteString(`{"type":`)
	tag, _ := json.Marshal(f.FrameType())
	buf.Write(tag)
	// body 一定是 JSON 对象：{} 或 {...}
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// PeekType 读取帧的 type 字段
func PeekType(data []byte) (Type, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if h.Type == "" {
		return "", ErrMalformed.WithMessage("missing type field")
	}
	return h.Type, nil
}

// DecodeInbound 解码客户端帧
// 未知类型返回 ErrUnknownType，调用方应忽略该帧而非断开连接
func DecodeInbound(data []byte) (Inbound, error) {
	typ, err := PeekType(data)
	if err != nil {
		return nil, err
	}

	var msg Inbound
	switch typ {
	case TypeJoinRoom:
		var m JoinRoom
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeLeaveRoom:
		var m LeaveRoom
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeChatMessage:
		var m SendChat
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, ErrUnknownType.WithMessage(fmt.Sprintf("unknown frame type %q", typ))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeOutbound 解码中继下发的帧
func DecodeOutbound(data []byte) (Outbound, error) {
	typ, err := PeekType(data)
	if err != nil {
		return nil, err
	}

	var msg Outbound
	switch typ {
	case TypeWelcome:
		var m Welcome
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeUserJoined:
		var m UserJoined
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeUserLeft:
		var m UserLeft
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeRoomMembersUpdate:
		var m RoomMembersUpdate
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeChatMessage:
		var m ChatMessage
		err = json.Unmarshal(data, &m)
		msg = m
	default:
		return nil, ErrUnknownType.WithMessage(fmt.Sprintf("unknown frame type %q", typ))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return msg, nil
}
