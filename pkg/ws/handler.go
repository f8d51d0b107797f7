package ws

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/protocol"
	"github.com/tokmz/roomcast/pkg/tracing"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Handler 单连接消息分发
type Handler struct {
	registry    *Registry
	table       *RoomTable
	broadcaster *Broadcaster
	events      *EventBus
	metrics     Metrics
	logger      logger.Logger

	maxMessageSize   int64
	maxInvalidFrames int

	newID func() string
	now   func() time.Time
}

// NewHandler 创建分发器
func NewHandler(registry *Registry, table *RoomTable, broadcaster *Broadcaster, events *EventBus, config *Config) *Handler {
	metrics := config.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		registry:         registry,
		table:            table,
		broadcaster:      broadcaster,
		events:           events,
		metrics:          metrics,
		logger:           log,
		maxMessageSize:   config.MaxMessageSize,
		maxInvalidFrames: config.MaxInvalidFrames,
		newID:            uuid.NewString,
		now:              time.Now,
	}
}

// Serve 驱动一条已注册连接直到关闭，返回前连接已注销
func (h *Handler) Serve(ctx context.Context, c *Conn) {
	defer h.registry.Unregister(c)

	h.logger.Info("connection opened",
		zap.String("conn_id", c.id),
		zap.String("remote_addr", c.remoteAddr),
	)

	welcome, _ := protocol.Encode(protocol.Welcome{Message: "Connected to relay with ID: " + c.id})
	_ = c.Send(welcome)

	go c.writePump()
	h.readLoop(ctx, c)
}

func (h *Handler) readLoop(ctx context.Context, c *Conn) {
	defer c.terminate()

	c.ws.SetReadLimit(h.maxMessageSize)
	c.ws.SetPongHandler(func(string) error {
		h.registry.MarkAlive(c)
		return nil
	})

	invalid := 0
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, protocol.CloseNormal, protocol.CloseGoingAway) {
				h.logger.Debug("connection read failed", zap.String("conn_id", c.id), zap.Error(ErrTransport.WithError(err)))
			}
			return
		}

		err = h.Dispatch(ctx, c, data)
		switch {
		case err == nil:
			invalid = 0
		case isProtocolError(err):
			invalid++
			h.metrics.IncrementInvalidFrames()
			h.logger.Warn("frame dropped", zap.String("conn_id", c.id), zap.Int("consecutive", invalid), zap.Error(err))
			h.events.Publish(Event{Type: EventProtocolError, ConnID: c.id, Data: err.Error()})
			if invalid > h.maxInvalidFrames {
				h.logger.Warn("too many invalid frames, closing", zap.String("conn_id", c.id))
				c.closeWith(protocol.ClosePolicyViolation, "too many invalid frames")
				return
			}
		default:
			// 未知类型、非成员操作等均视为空操作
			invalid = 0
			h.logger.Debug("frame ignored", zap.String("conn_id", c.id), zap.Error(err))
		}
	}
}

// Dispatch 解码并处理一帧
func (h *Handler) Dispatch(ctx context.Context, c *Conn, data []byte) error {
	msg, err := protocol.DecodeInbound(data)
	if err != nil {
		return err
	}
	h.metrics.IncrementFrames(string(msg.FrameType()))

	switch m := msg.(type) {
	case protocol.JoinRoom:
		return h.join(c, m)
	case protocol.LeaveRoom:
		return h.leave(c, m)
	case protocol.SendChat:
		return h.chat(ctx, c, m)
	}
	return protocol.ErrUnknownType
}

func (h *Handler) join(c *Conn, m protocol.JoinRoom) error {
	_, joined, err := h.table.Join(c, m.RoomID, m.UserID)
	if err != nil {
		return err
	}
	if !joined {
		h.logger.Debug("duplicate join ignored", zap.String("conn_id", c.id), zap.String("room_id", m.RoomID))
		return nil
	}

	h.logger.Info("joined room",
		zap.String("conn_id", c.id),
		zap.String("room_id", m.RoomID),
		zap.String("user_id", m.UserID),
	)
	return nil
}

func (h *Handler) leave(c *Conn, m protocol.LeaveRoom) error {
	ch, left := h.table.Leave(c, m.RoomID)
	if !left {
		return ErrMembership
	}

	h.logger.Info("left room",
		zap.String("conn_id", c.id),
		zap.String("room_id", m.RoomID),
		zap.String("user_id", ch.UserID),
		zap.Bool("room_deleted", ch.RoomDeleted()),
	)
	return nil
}

func (h *Handler) chat(ctx context.Context, c *Conn, m protocol.SendChat) error {
	ctx, span := tracing.StartSpan(ctx, "relay.chat", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	msg := protocol.NewChatMessage(m, h.newID(), h.now())
	span.SetAttributes(
		tracing.AttrConnID.String(c.id),
		tracing.AttrRoomID.String(msg.RoomID),
		tracing.AttrUserID.String(msg.UserID),
		tracing.AttrMessageID.String(msg.ID),
	)

	n, err := h.broadcaster.Chat(c, msg)
	if err != nil {
		tracing.RecordError(span, err)
		return err
	}
	span.SetAttributes(tracing.AttrRecipients.Int(n))

	h.logger.DebugContext(ctx, "chat broadcast",
		zap.String("conn_id", c.id),
		zap.String("room_id", msg.RoomID),
		zap.String("message_id", msg.ID),
		zap.Int("recipients", n),
	)
	h.events.Publish(Event{
		Type:      EventChatMessage,
		ConnID:    c.id,
		RoomID:    msg.RoomID,
		UserID:    msg.UserID,
		MessageID: msg.ID,
		Data:      msg,
	})
	return nil
}
