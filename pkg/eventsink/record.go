package eventsink

import (
	"encoding/json"
	"time"

	"github.com/tokmz/roomcast/pkg/protocol"
	"github.com/tokmz/roomcast/pkg/ws"
)

// Record 导出到外部系统的事件记录
type Record struct {
	Type      string    `json:"type"`
	ConnID    string    `json:"connId,omitempty"`
	RoomID    string    `json:"roomId,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	Members   []string  `json:"members,omitempty"`
	Content   string    `json:"content,omitempty"`
	Time      time.Time `json:"time"`
}

// FromEvent 把中继事件转换为记录
func FromEvent(e ws.Event) Record {
	r := Record{
		Type:      string(e.Type),
		ConnID:    e.ConnID,
		RoomID:    e.RoomID,
		UserID:    e.UserID,
		MessageID: e.MessageID,
		Time:      e.Time.UTC(),
	}
	switch d := e.Data.(type) {
	case []string:
		r.Members = d
	case protocol.ChatMessage:
		r.Content = d.Content
	}
	return r
}

// Key 分区/路由键：优先房间，保证同一房间的事件有序
func (r Record) Key() string {
	if r.RoomID != "" {
		return r.RoomID
	}
	return r.ConnID
}

func (r Record) encode() ([]byte, error) {
	return json.Marshal(r)
}
