package settings

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokmz/roomcast"
	"github.com/tokmz/roomcast/pkg/eventsink"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/orm"
)

const relayYAML = `
server:
  addr: ":3000"
relay:
  heartbeat_interval: 15s
  echo_to_sender: false
  allowed_origins: ["https://chat.example.com"]
log:
  level: info
events:
  driver: kafka
  kafka:
    brokers: ["k1:9092", "k2:9092"]
`

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Relay(t *testing.T) {
	path := write(t, t.TempDir(), "relayd.yaml", relayYAML)

	cfg, _, err := Load[Relay](path, RelayDefaults(), nil)
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 15*time.Second, cfg.Relay.HeartbeatInterval)
	assert.False(t, cfg.Relay.EchoToSender)
	assert.Equal(t, 256, cfg.Relay.SendQueueSize)
	assert.EqualValues(t, 64*1024, cfg.Relay.MaxMessageSize)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.Relay.AllowedOrigins)
	assert.Equal(t, eventsink.DriverKafka, cfg.Events.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Kafka.Brokers)
	assert.Equal(t, "roomcast.events", cfg.Events.Kafka.Topic)
	assert.Equal(t, "roomcast-relayd", cfg.Tracing.ServiceName)
	assert.False(t, cfg.Tracing.Enabled)
	require.NoError(t, cfg.Events.Validate())
}

func TestLoad_StoreDefaultsAndEnv(t *testing.T) {
	t.Setenv("ROOMCAST_DATABASE_DSN", "/tmp/chat.db")
	t.Setenv("ROOMCAST_SEED_FILE", "configs/seed.yaml")

	cfg, _, err := Load[Store]("", StoreDefaults(), nil)
	require.NoError(t, err)

	assert.Equal(t, ":2135", cfg.Server.Addr)
	assert.Equal(t, orm.SQLite, cfg.Database.Type)
	assert.Equal(t, "/tmp/chat.db", cfg.Database.DSN)
	assert.Equal(t, 200*time.Millisecond, cfg.Database.SlowThreshold)
	assert.True(t, cfg.Database.Tracing)
	assert.Equal(t, "configs/seed.yaml", cfg.Seed.File)
	assert.Equal(t, "roomcast-chatstore", cfg.Tracing.ServiceName)
	require.NoError(t, cfg.Database.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load[Relay](filepath.Join(t.TempDir(), "nope.yaml"), RelayDefaults(), nil)
	assert.Error(t, err)
}

func TestLoad_OnChange(t *testing.T) {
	dir := t.TempDir()
	path := write(t, dir, "relayd.yaml", relayYAML)

	var level atomic.Value
	_, cfg, err := Load[Relay](path, RelayDefaults(), func(r *Relay) {
		level.Store(r.Log.Level)
	})
	require.NoError(t, err)
	defer cfg.Close()

	write(t, dir, "relayd.yaml", strings.Replace(relayYAML, "level: info", "level: debug", 1))
	require.Eventually(t, func() bool {
		v, _ := level.Load().(string)
		return v == "debug"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestLogBuild(t *testing.T) {
	l, err := Log{Level: "warn", Format: "console"}.Build()
	require.NoError(t, err)
	assert.Equal(t, logger.WarnLevel, l.Level())

	file := filepath.Join(t.TempDir(), "relay.log")
	l, err = Log{Level: "debug", File: file, Rotate: true, MaxSize: 1}.Build()
	require.NoError(t, err)
	l.Info("hello")
	_ = l.Sync()
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")

	_, err = Log{Level: "loud"}.Build()
	assert.Error(t, err)
}

func TestServerOptions(t *testing.T) {
	base := Server{Addr: ":0", Mode: "test", ReadTimeout: time.Second, WriteTimeout: time.Second, ShutdownTimeout: time.Second}
	assert.Len(t, base.Options(), 5)

	full := base
	full.IdleTimeout = time.Minute
	full.TrustedProxies = []string{"10.0.0.0/8"}
	full.AccessLogSkip = []string{}
	opts := full.Options()
	assert.Len(t, opts, 8)

	// 非法代理只记日志，引擎照常创建
	full.TrustedProxies = []string{"not-a-cidr"}
	assert.NotNil(t, roomcast.New(full.Options()...))
}
