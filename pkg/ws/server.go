package ws

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/protocol"
	"go.uber.org/zap"
)

// Stats 运行时统计
type Stats struct {
	Connections   int   `json:"connections"`
	Rooms         int   `json:"rooms"`
	DroppedEvents int64 `json:"droppedEvents"`
}

// Server 中继服务，组装注册表、房间表、广播器、心跳与分发器
type Server struct {
	config      *Config
	registry    *Registry
	table       *RoomTable
	broadcaster *Broadcaster
	heartbeat   *Heartbeat
	handler     *Handler
	events      *EventBus
	metrics     Metrics
	logger      logger.Logger
	upgrader    *websocket.Upgrader

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
	closing atomic.Bool
	// admit 串行化“检查 closing + wg.Add”与 Shutdown 置位 closing，
	// 保证 Shutdown 开始等待后不再有新的 wg.Add
	admit sync.Mutex
}

// NewServer 创建中继服务
func NewServer(opts ...Option) (*Server, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Metrics == nil {
		config.Metrics = NoopMetrics{}
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	log := config.Logger.Named("relay")
	config.Logger = log

	ctx, cancel := context.WithCancel(context.Background())

	table := NewRoomTable(config.MaxRoomSize)
	registry := NewRegistry(config.MaxConnections, table)
	events := NewEventBus(config.EventWorkers, config.EventQueueSize)
	broadcaster := NewBroadcaster(table, config.Metrics, log, config.EchoToSender)

	s := &Server{
		config:      config,
		registry:    registry,
		table:       table,
		broadcaster: broadcaster,
		heartbeat:   NewHeartbeat(registry, config.HeartbeatInterval, log),
		handler:     NewHandler(registry, table, broadcaster, events, config),
		events:      events,
		metrics:     config.Metrics,
		logger:      log,
		upgrader:    newUpgrader(config.UpgraderConfig, config.HandshakeTimeout),
		ctx:         ctx,
		cancel:      cancel,
	}

	table.OnChange(s.publishChange)
	registry.OnUnregister(s.onUnregister)
	s.heartbeat.OnDead(s.onDead)

	return s, nil
}

// Start 启动心跳监控，重复调用无副作用
func (s *Server) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.heartbeat.Run(s.ctx)
	}()
}

// ServeHTTP 处理 WebSocket 升级
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.closing.Load() {
		http.Error(w, ErrServerClosed.Message, http.StatusServiceUnavailable)
		return
	}
	if s.registry.Count() >= s.config.MaxConnections {
		http.Error(w, ErrTooManyConnections.Message, http.StatusServiceUnavailable)
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader 已写回错误响应
		s.logger.Debug("upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}

	c := newConn(uuid.NewString(), wsConn, s.config.SendQueueSize, s.config.WriteTimeout)
	if err := s.registry.Register(c); err != nil {
		s.logger.Warn("register failed", zap.String("remote_addr", c.remoteAddr), zap.Error(err))
		c.closeWith(websocket.CloseTryAgainLater, err.Error())
		return
	}
	s.metrics.IncrementConnections()

	// 注册与 Shutdown 并发时，由这里补偿注销
	s.admit.Lock()
	if s.closing.Load() {
		s.admit.Unlock()
		c.closeWith(protocol.CloseGoingAway, "server shutting down")
		s.registry.Unregister(c)
		return
	}
	s.wg.Add(1)
	s.admit.Unlock()

	s.events.Publish(Event{Type: EventConnected, ConnID: c.id, Data: c.remoteAddr})

	go func() {
		defer s.wg.Done()
		s.handler.Serve(s.ctx, c)
	}()
}

// Shutdown 优雅关闭：停止接入与心跳，向所有连接发送 1001 并注销
func (s *Server) Shutdown(ctx context.Context) error {
	s.admit.Lock()
	first := s.closing.CompareAndSwap(false, true)
	s.admit.Unlock()
	if !first {
		return nil
	}
	s.cancel()

	var closeWg sync.WaitGroup
	s.registry.Range(func(c *Conn) bool {
		closeWg.Add(1)
		go func(c *Conn) {
			defer closeWg.Done()
			c.closeWith(protocol.CloseGoingAway, "server shutting down")
			s.registry.Unregister(c)
		}(c)
		return true
	})
	closeWg.Wait()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	defer s.events.Close()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe 订阅中继事件
func (s *Server) Subscribe(eventType EventType, handler EventHandler) {
	s.events.Subscribe(eventType, handler)
}

// Broadcast 由服务端主动向房间推送帧
func (s *Server) Broadcast(roomID string, f protocol.Outbound) int {
	return s.broadcaster.Broadcast(roomID, f, nil)
}

// Members 房间去重后的在线用户
func (s *Server) Members(roomID string) []string {
	return s.table.MembersOf(roomID)
}

// Stats 运行时统计
func (s *Server) Stats() Stats {
	return Stats{
		Connections:   s.registry.Count(),
		Rooms:         s.table.RoomCount(),
		DroppedEvents: s.events.DroppedEvents(),
	}
}

// publishChange 在房间表锁内执行，只做非阻塞操作
func (s *Server) publishChange(ch Change) {
	s.metrics.SetRoomCount(ch.Rooms)

	typ := EventRoomJoined
	if ch.Kind == ChangeLeft {
		typ = EventRoomLeft
	}
	s.events.Publish(Event{
		Type:   typ,
		ConnID: ch.Conn.id,
		RoomID: ch.RoomID,
		UserID: ch.UserID,
		Data:   ch.Members,
	})
}

func (s *Server) onUnregister(c *Conn, changes []Change) {
	s.metrics.DecrementConnections()
	s.logger.Info("connection closed",
		zap.String("conn_id", c.id),
		zap.String("remote_addr", c.remoteAddr),
		zap.Int("rooms_left", len(changes)),
	)
	s.events.Publish(Event{Type: EventDisconnected, ConnID: c.id})
}

func (s *Server) onDead(c *Conn) {
	s.metrics.IncrementDeadPeers()
	s.events.Publish(Event{Type: EventDeadPeer, ConnID: c.id, Data: c.remoteAddr})
}
