package main

import (
	"context"
	"time"

	"github.com/tokmz/roomcast"
	"github.com/tokmz/roomcast/internal/settings"
	"github.com/tokmz/roomcast/middleware"
	"github.com/tokmz/roomcast/pkg/eventsink"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/ws"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const statsInterval = time.Minute

// app 组装中继、事件导出与 HTTP 入口
type app struct {
	cfg       *settings.Relay
	log       logger.Logger
	relay     *ws.Server
	sink      eventsink.Sink
	forwarder *eventsink.Forwarder
	engine    *roomcast.Engine
}

func newApp(cfg *settings.Relay, log logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	opts := []ws.Option{
		ws.WithLogger(log),
		ws.WithHeartbeatInterval(cfg.Relay.HeartbeatInterval),
		ws.WithEchoToSender(cfg.Relay.EchoToSender),
		ws.WithMaxConnections(cfg.Relay.MaxConnections),
		ws.WithMaxRoomSize(cfg.Relay.MaxRoomSize),
		ws.WithSendQueueSize(cfg.Relay.SendQueueSize),
		ws.WithMessageSizeLimit(cfg.Relay.MaxMessageSize),
		ws.WithMaxInvalidFrames(cfg.Relay.MaxInvalidFrames),
		ws.WithEventBus(cfg.Relay.EventWorkers, cfg.Relay.EventQueueSize),
	}
	if len(cfg.Relay.AllowedOrigins) > 0 {
		opts = append(opts, ws.WithCheckOriginWhitelist(cfg.Relay.AllowedOrigins))
	}
	if cfg.Metrics {
		metrics, err := ws.NewOTelMetrics(otel.Meter("roomcast.relay"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, ws.WithMetrics(metrics))
	}

	relay, err := ws.NewServer(opts...)
	if err != nil {
		return nil, err
	}
	a.relay = relay

	sink, err := eventsink.New(cfg.Events, log)
	if err != nil {
		return nil, err
	}
	if sink != nil {
		a.sink = sink
		a.forwarder = eventsink.NewForwarder(sink, log, cfg.Relay.ExportTimeout)
		a.forwarder.Attach(relay)
	}

	a.engine = roomcast.Default(append(cfg.Server.Options(),
		roomcast.WithLogger(log),
		roomcast.WithBeforeShutdown(func(ctx context.Context) {
			if err := a.relay.Shutdown(ctx); err != nil {
				a.log.Warn("relay shutdown incomplete", zap.Error(err))
			}
		}),
	)...)
	a.routes()
	return a, nil
}

type roomMembersReq struct {
	RoomID string `uri:"roomId" binding:"required"`
}

type roomMembersResp struct {
	RoomID  string   `json:"roomId"`
	Members []string `json:"members"`
}

type healthResp struct {
	Status string `json:"status"`
}

func (a *app) routes() {
	r := a.engine.RouterGroup()
	if a.cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(&middleware.TracingConfig{
			TracerName:   "roomcast.relayd",
			ExcludePaths: []string{"/healthz"},
		}))
	}

	r.GET("/ws", func(c *roomcast.Context) {
		a.relay.ServeHTTP(c.Writer(), c.Request())
	}, middleware.RateLimiter(&middleware.RateLimiterConfig{
		RequestsPerSecond: a.cfg.Relay.UpgradeRate,
		Burst:             a.cfg.Relay.UpgradeBurst,
		Logger:            a.log,
	}))

	roomcast.HandleOnly[healthResp](r.GET, "/healthz", func(*roomcast.Context) (*healthResp, error) {
		return &healthResp{Status: "ok"}, nil
	})

	api := r.Group("/api")
	roomcast.HandleOnly[ws.Stats](api.GET, "/stats", func(*roomcast.Context) (*ws.Stats, error) {
		stats := a.relay.Stats()
		return &stats, nil
	})
	roomcast.Handle[roomMembersReq, roomMembersResp](api.GET, "/rooms/:roomId/members",
		func(_ *roomcast.Context, req *roomMembersReq) (*roomMembersResp, error) {
			members := a.relay.Members(req.RoomID)
			if members == nil {
				members = []string{}
			}
			return &roomMembersResp{RoomID: req.RoomID, Members: members}, nil
		})
}

// run 启动中继并提供 HTTP 服务，ctx 结束后依次关闭 HTTP、中继、事件导出
func (a *app) run(ctx context.Context) error {
	a.relay.Start()
	defer a.closeSink()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.engine.Serve(gctx)
	})
	g.Go(func() error {
		a.reportStats(gctx)
		return nil
	})
	return g.Wait()
}

func (a *app) reportStats(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := a.relay.Stats()
			fields := []zap.Field{
				zap.Int("connections", s.Connections),
				zap.Int("rooms", s.Rooms),
				zap.Int64("dropped_events", s.DroppedEvents),
			}
			if a.forwarder != nil {
				fields = append(fields, zap.Int64("exported", a.forwarder.Sent()), zap.Int64("export_failed", a.forwarder.Failed()))
			}
			a.log.Info("relay stats", fields...)
		}
	}
}

func (a *app) closeSink() {
	if a.sink == nil {
		return
	}
	if err := a.sink.Close(); err != nil {
		a.log.Warn("event sink close failed", zap.Error(err))
	}
}
