package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokmz/roomcast/internal/settings"
	"github.com/tokmz/roomcast/pkg/eventsink"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/protocol"
	"github.com/tokmz/roomcast/pkg/ws"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testSettings(t *testing.T) *settings.Relay {
	t.Helper()
	cfg, conf, err := settings.Load[settings.Relay]("", settings.RelayDefaults(), nil)
	require.NoError(t, err)
	t.Cleanup(conf.Close)
	cfg.Server.Mode = "test"
	cfg.Relay.HeartbeatInterval = time.Hour
	cfg.Metrics = false
	cfg.Events.Driver = eventsink.DriverLog
	return cfg
}

func startApp(t *testing.T, cfg *settings.Relay) (*app, *httptest.Server, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	a, err := newApp(cfg, logger.NewWithCore(core))
	require.NoError(t, err)
	a.relay.Start()

	ts := httptest.NewServer(a.engine.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.relay.Shutdown(ctx)
		ts.Close()
		a.closeSink()
	})
	return a, ts, logs
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var env struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Equal(t, http.StatusOK, env.Code)
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func TestRelayd_StatusEndpoints(t *testing.T) {
	_, ts, logs := startApp(t, testSettings(t))

	var health healthResp
	getJSON(t, ts.URL+"/healthz", &health)
	assert.Equal(t, "ok", health.Status)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	data, err := protocol.Encode(protocol.JoinRoom{RoomID: "lobby", UserID: "u1"})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))

	require.Eventually(t, func() bool {
		var members roomMembersResp
		getJSON(t, ts.URL+"/api/rooms/lobby/members", &members)
		return len(members.Members) == 1 && members.Members[0] == "u1"
	}, 2*time.Second, 20*time.Millisecond)

	var stats struct {
		Connections int `json:"connections"`
		Rooms       int `json:"rooms"`
	}
	getJSON(t, ts.URL+"/api/stats", &stats)
	assert.Equal(t, 1, stats.Connections)
	assert.Equal(t, 1, stats.Rooms)

	var empty roomMembersResp
	getJSON(t, ts.URL+"/api/rooms/nowhere/members", &empty)
	assert.Empty(t, empty.Members)
	assert.NotNil(t, empty.Members)

	require.Eventually(t, func() bool {
		return logs.FilterMessage(string(ws.EventRoomJoined)).Len() == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRelayd_UpgradeRateLimited(t *testing.T) {
	cfg := testSettings(t)
	cfg.Relay.UpgradeRate = 0.001
	cfg.Relay.UpgradeBurst = 1
	_, ts, _ := startApp(t, cfg)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRelayd_OriginWhitelist(t *testing.T) {
	cfg := testSettings(t)
	cfg.Relay.AllowedOrigins = []string{"https://chat.example.com"}
	_, ts, _ := startApp(t, cfg)

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://chat.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), header)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestReloadLevel(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	log := logger.NewWithCore(core)

	reloadLevel(log, "warn")
	assert.Equal(t, logger.WarnLevel, log.Level())

	reloadLevel(log, "loud")
	assert.Equal(t, logger.WarnLevel, log.Level())
}
