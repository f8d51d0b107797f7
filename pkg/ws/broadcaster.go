package ws

import (
	"time"

	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/protocol"
	"go.uber.org/zap"
)

// Broadcaster 房间广播
// 投递只做非阻塞入队，队列满或连接已注销的接收方被静默跳过
type Broadcaster struct {
	table        *RoomTable
	metrics      Metrics
	logger       logger.Logger
	echoToSender bool
}

// NewBroadcaster 创建广播器并挂接到房间表的变更回调
func NewBroadcaster(table *RoomTable, metrics Metrics, log logger.Logger, echoToSender bool) *Broadcaster {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	b := &Broadcaster{
		table:        table,
		metrics:      metrics,
		logger:       log,
		echoToSender: echoToSender,
	}
	table.OnChange(b.applyChange)
	return b
}

// Broadcast 向房间内所有连接发送帧，返回成功入队的连接数
func (b *Broadcaster) Broadcast(roomID string, f protocol.Outbound, exclude *Conn) int {
	data, err := protocol.Encode(f)
	if err != nil {
		b.logger.Error("encode frame failed", zap.String("room_id", roomID), zap.Error(err))
		return 0
	}

	var n int
	b.table.withRoom(roomID, func(r *room) {
		n = b.deliver(r.conns(), data, exclude)
	})
	return n
}

// Chat 广播聊天消息，发送者必须是房间成员
func (b *Broadcaster) Chat(sender *Conn, msg protocol.ChatMessage) (int, error) {
	data, err := protocol.Encode(msg)
	if err != nil {
		return 0, err
	}

	var exclude *Conn
	if !b.echoToSender {
		exclude = sender
	}

	member := false
	var n int
	b.table.withRoom(msg.RoomID, func(r *room) {
		if _, member = r.members[sender]; member {
			n = b.deliver(r.conns(), data, exclude)
		}
	})
	if !member {
		return 0, ErrMembership
	}
	return n, nil
}

// applyChange 在房间表锁内执行：加入或离开通知，紧随全量成员列表
func (b *Broadcaster) applyChange(ch Change) {
	if len(ch.Recipients) == 0 {
		return
	}

	var event protocol.Outbound
	switch ch.Kind {
	case ChangeJoined:
		event = protocol.UserJoined{RoomID: ch.RoomID, UserID: ch.UserID}
	case ChangeLeft:
		event = protocol.UserLeft{RoomID: ch.RoomID, UserID: ch.UserID}
	default:
		return
	}

	for _, f := range []protocol.Outbound{event, protocol.RoomMembersUpdate{RoomID: ch.RoomID, Members: ch.Members}} {
		data, err := protocol.Encode(f)
		if err != nil {
			b.logger.Error("encode frame failed", zap.String("room_id", ch.RoomID), zap.Error(err))
			return
		}
		b.deliver(ch.Recipients, data, nil)
	}
}

func (b *Broadcaster) deliver(conns []*Conn, data []byte, exclude *Conn) int {
	start := time.Now()
	sent := 0
	for _, c := range conns {
		if c == exclude {
			continue
		}
		if err := c.Send(data); err != nil {
			b.metrics.IncrementDroppedFrames()
			b.logger.Debug("frame dropped", zap.String("conn_id", c.id), zap.Error(err))
			continue
		}
		sent++
	}
	b.metrics.RecordBroadcast(sent, time.Since(start))
	return sent
}
