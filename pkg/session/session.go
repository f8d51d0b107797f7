package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/protocol"
	"go.uber.org/zap"
)

// State 会话状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	default:
		return "DISCONNECTED"
	}
}

// Session 维护到中继的单条逻辑连接
//
// 同一时刻最多一条物理连接。非正常关闭后按退避策略重连，
// 连接建立后自动重放已加入房间的 JOIN_ROOM。
type Session struct {
	cfg    Config
	dialer *websocket.Dialer
	log    logger.Logger

	mu       sync.Mutex
	state    State
	conn     *websocket.Conn
	gen      uint64 // 每次新建或丢弃连接递增，旧连接的回调据此失效
	attempts int
	gaveUp   bool
	lastErr  error
	timer    *time.Timer
	joined   map[string]string // roomID -> userID
	dedup    *dedup

	onEvent  func(protocol.Outbound)
	onState  func(State)
	onGiveUp func(error)

	writeMu sync.Mutex
}

// New 创建会话，不会立即连接
func New(cfg *Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	return &Session{
		cfg: c,
		dialer: &websocket.Dialer{
			HandshakeTimeout: c.HandshakeTimeout,
			Proxy:            websocket.DefaultDialer.Proxy,
		},
		log:    c.Logger.Named("session"),
		joined: make(map[string]string),
		dedup:  newDedup(c.DedupCapacity),
	}, nil
}

// OnEvent 设置下行帧回调（在读循环 goroutine 中调用）
func (s *Session) OnEvent(fn func(protocol.Outbound)) {
	s.mu.Lock()
	s.onEvent = fn
	s.mu.Unlock()
}

// OnStateChange 设置状态变更回调
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	s.onState = fn
	s.mu.Unlock()
}

// OnGiveUp 设置放弃重连回调
func (s *Session) OnGiveUp(fn func(error)) {
	s.mu.Lock()
	s.onGiveUp = fn
	s.mu.Unlock()
}

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts 连续失败次数
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Err 放弃重连时的最后一次传输错误，未放弃时为 nil
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gaveUp {
		return nil
	}
	return ErrGaveUp.WithError(s.lastErr)
}

// Joined 返回本地记录的房间 -> 用户
func (s *Session) Joined() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.joined))
	for k, v := range s.joined {
		out[k] = v
	}
	return out
}

// Connect 建立连接；CONNECTING 或 OPEN 状态下为空操作
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	if s.gaveUp {
		s.gaveUp = false
		s.attempts = 0
	}
	return s.dialLocked(ctx)
}

// dialLocked 调用时持有 s.mu，返回前释放
func (s *Session) dialLocked(ctx context.Context) error {
	s.stopTimerLocked()
	s.gen++
	gen := s.gen
	s.state = StateConnecting
	notify := s.onState
	s.mu.Unlock()
	emit(notify, StateConnecting)

	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, s.cfg.Header)
	if err != nil {
		s.log.Warn("dial relay failed", zap.String("url", s.cfg.URL), zap.Error(err))
		s.fail(gen, err)
		return ErrDial.WithError(err)
	}

	s.mu.Lock()
	if gen != s.gen {
		// 拨号期间调用了 Disconnect
		s.mu.Unlock()
		_ = conn.Close()
		return ErrNotConnected
	}
	s.conn = conn
	s.state = StateOpen
	s.attempts = 0
	replay := make([]protocol.JoinRoom, 0, len(s.joined))
	for room, user := range s.joined {
		replay = append(replay, protocol.JoinRoom{RoomID: room, UserID: user})
	}
	notify = s.onState
	s.mu.Unlock()

	s.log.Info("relay connected", zap.String("url", s.cfg.URL), zap.Int("rejoin", len(replay)))
	emit(notify, StateOpen)

	for _, j := range replay {
		if err := s.writeTo(conn, j); err != nil {
			s.log.Warn("rejoin failed", zap.String("room_id", j.RoomID), zap.Error(err))
		}
	}

	go s.readLoop(gen, conn)
	return nil
}

// Disconnect 主动断开：清空房间记录，发送 1000 关闭帧，不再重连
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.gen++
	clear(s.joined)
	s.attempts = 0
	s.gaveUp = false
	conn := s.conn
	s.conn = nil
	changed := s.state != StateDisconnected
	s.state = StateDisconnected
	notify := s.onState
	s.mu.Unlock()

	if conn != nil {
		msg := websocket.FormatCloseMessage(protocol.CloseNormal, "User disconnected")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteTimeout))
		_ = conn.Close()
	}
	if changed {
		emit(notify, StateDisconnected)
	}
}

// JoinRoom 记录房间并在连接可用时发送 JOIN_ROOM；未连接时触发连接，建立后自动加入
func (s *Session) JoinRoom(roomID, userID string) error {
	frame := protocol.JoinRoom{RoomID: roomID, UserID: userID}
	if err := frame.Validate(); err != nil {
		return ErrInvalidArgument.WithError(err)
	}

	s.mu.Lock()
	if s.joined[roomID] == userID {
		s.mu.Unlock()
		return nil
	}
	s.joined[roomID] = userID
	conn, state := s.conn, s.state
	s.mu.Unlock()

	if state == StateOpen {
		return s.writeTo(conn, frame)
	}
	s.connectAsync()
	return nil
}

// LeaveRoom 移除房间记录，连接可用时发送 LEAVE_ROOM
func (s *Session) LeaveRoom(roomID string) error {
	s.mu.Lock()
	if _, ok := s.joined[roomID]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.joined, roomID)
	conn, state := s.conn, s.state
	s.mu.Unlock()

	if state == StateOpen {
		return s.writeTo(conn, protocol.LeaveRoom{RoomID: roomID})
	}
	return nil
}

// SendMessage 发送聊天消息；未连接时触发连接并返回 ErrNotConnected
func (s *Session) SendMessage(roomID, userID, userName, content string) error {
	frame := protocol.SendChat{RoomID: roomID, UserID: userID, UserName: userName, Content: content}
	if err := frame.Validate(); err != nil {
		return ErrInvalidArgument.WithError(err)
	}

	s.mu.Lock()
	conn, state := s.conn, s.state
	s.mu.Unlock()

	if state != StateOpen {
		s.connectAsync()
		return ErrNotConnected
	}
	return s.writeTo(conn, frame)
}

func (s *Session) connectAsync() {
	go func() {
		_ = s.Connect(context.Background())
	}()
}

func (s *Session) writeTo(conn *websocket.Conn, f protocol.Inbound) error {
	data, err := protocol.Encode(f)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return ErrTransport.WithError(err)
	}
	return nil
}

func (s *Session) readLoop(gen uint64, conn *websocket.Conn) {
	extend := func() {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
	extend()
	conn.SetPingHandler(func(data string) error {
		extend()
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(s.cfg.WriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			s.closed(gen, err)
			return
		}
		extend()
		s.dispatch(data)
	}
}

func (s *Session) dispatch(data []byte) {
	msg, err := protocol.DecodeOutbound(data)
	if err != nil {
		// 未知类型来自更新版本的中继，忽略即可
		if !errors.Is(err, protocol.ErrUnknownType) {
			s.log.Warn("malformed frame from relay", zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	if chat, ok := msg.(protocol.ChatMessage); ok && s.dedup.seen(chat.ID) {
		s.mu.Unlock()
		s.log.Debug("duplicate chat message dropped", zap.String("message_id", chat.ID))
		return
	}
	fn := s.onEvent
	s.mu.Unlock()

	if fn != nil {
		fn(msg)
	}
}

// closed 读循环退出
func (s *Session) closed(gen uint64, err error) {
	if !protocol.ShouldReconnect(err) {
		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.conn = nil
		s.state = StateDisconnected
		notify := s.onState
		s.mu.Unlock()

		s.log.Info("relay closed connection normally")
		emit(notify, StateDisconnected)
		return
	}
	s.log.Warn("relay connection lost", zap.Error(err))
	s.fail(gen, err)
}

// fail 记录一次失败：未超过上限则按退避安排重连，否则放弃
func (s *Session) fail(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = StateDisconnected
	s.attempts++
	s.lastErr = err
	notify := s.onState

	if s.attempts > s.cfg.MaxAttempts {
		s.gaveUp = true
		giveUp := s.onGiveUp
		attempts := s.attempts
		s.mu.Unlock()

		s.log.Error("giving up reconnect", zap.Int("attempts", attempts), zap.Error(err))
		emit(notify, StateDisconnected)
		if giveUp != nil {
			giveUp(ErrGaveUp.WithError(err))
		}
		return
	}

	delay := s.cfg.backoff(s.attempts)
	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		if gen != s.gen || s.state != StateDisconnected {
			s.mu.Unlock()
			return
		}
		_ = s.dialLocked(context.Background())
	})
	attempts := s.attempts
	s.mu.Unlock()

	s.log.Info("reconnect scheduled", zap.Int("attempt", attempts), zap.Duration("delay", delay))
	emit(notify, StateDisconnected)
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func emit(fn func(State), st State) {
	if fn != nil {
		fn(st)
	}
}
