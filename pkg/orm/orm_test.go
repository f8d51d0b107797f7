package orm

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokmz/roomcast/pkg/logger"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

type presenceRow struct {
	ID     uint   `gorm:"primaryKey"`
	RoomID string `gorm:"index"`
	UserID string
}

func sqliteConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Type = SQLite
	cfg.DSN = filepath.Join(t.TempDir(), "orm.db")
	cfg.MaxOpenConns = 1
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		ok   bool
	}{
		{"sqlite", func(c *Config) { c.Type = SQLite; c.DSN = "x.db" }, true},
		{"empty dsn", func(c *Config) {}, false},
		{"unknown type", func(c *Config) { c.Type = "oracle"; c.DSN = "x" }, false},
		{"replicas without sources", func(c *Config) {
			c.DSN = "x"
			c.ReadWriteSplit = &ReadWriteSplitConfig{Policy: "random"}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			}
		})
	}
}

func TestNew_SQLite(t *testing.T) {
	db, err := New(sqliteConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })

	require.NoError(t, db.AutoMigrate(&presenceRow{}))
	require.NoError(t, db.Create(&presenceRow{RoomID: "lobby", UserID: "alice"}).Error)

	var n int64
	require.NoError(t, db.Model(&presenceRow{}).Where("room_id = ?", "lobby").Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestNew_ReadReplica(t *testing.T) {
	cfg := sqliteConfig(t)
	cfg.ReadWriteSplit = &ReadWriteSplitConfig{
		Sources: []string{filepath.Join(t.TempDir(), "replica.db")},
		Policy:  "round_robin",
	}

	db, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })

	require.NoError(t, db.Exec("CREATE TABLE presence_rows (id INTEGER PRIMARY KEY, room_id TEXT, user_id TEXT)").Error)
	require.NoError(t, db.Create(&presenceRow{RoomID: "lobby", UserID: "alice"}).Error)

	// 强制走主库读取刚写入的数据
	var rows []presenceRow
	require.NoError(t, db.Clauses(dbresolver.Write).Find(&rows).Error)
	assert.Len(t, rows, 1)
}

func TestTracingPlugin(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	cfg := sqliteConfig(t)
	cfg.Tracing = true
	db, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })
	require.NoError(t, db.AutoMigrate(&presenceRow{}))

	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Create(&presenceRow{RoomID: "lobby", UserID: "alice"}).Error)
	var row presenceRow
	err = db.WithContext(ctx).Where("user_id = ?", "nobody").First(&row).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	names := map[string]bool{}
	for _, s := range rec.Ended() {
		names[s.Name()] = true
		if s.Name() == "gorm.Query" {
			assert.NotEqual(t, "Error", s.Status().Code.String(), "record not found is not a span error")
		}
	}
	assert.True(t, names["gorm.Create"])
	assert.True(t, names["gorm.Query"])
}

func TestTracingPlugin_Statements(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	for _, withSQL := range []bool{false, true} {
		cfg := sqliteConfig(t)
		cfg.Tracing = true
		cfg.TraceStatements = withSQL
		db, err := New(cfg)
		require.NoError(t, err)
		require.NoError(t, db.AutoMigrate(&presenceRow{}))
		require.NoError(t, db.Create(&presenceRow{RoomID: "lobby", UserID: "bob"}).Error)
		require.NoError(t, Close(db))

		var create sdktrace.ReadOnlySpan
		for _, s := range rec.Ended() {
			if s.Name() == "gorm.Create" {
				create = s
			}
		}
		require.NotNil(t, create)
		var hasSQL bool
		for _, kv := range create.Attributes() {
			if kv.Key == "db.statement" {
				hasSQL = true
			}
			if kv.Key == "db.sql.table" {
				assert.Equal(t, "presence_rows", kv.Value.AsString())
			}
		}
		assert.Equal(t, withSQL, hasSQL)
	}
}

func TestGormLogger_SlowAndError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := newGormLogger(&Config{Logger: logger.NewWithCore(core), LogLevel: 3, SlowThreshold: 10 * time.Millisecond})

	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	l.Trace(ctx, time.Now(), sql, assert.AnError)
	l.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), sql, nil)

	assert.Equal(t, 1, logs.FilterMessage("slow sql").Len())
	assert.Equal(t, 1, logs.FilterMessage("sql failed").Len())
	assert.Equal(t, 0, logs.FilterMessage("sql").Len(), "info level disabled at warn")

	silent := l.LogMode(1)
	silent.Trace(ctx, time.Now(), sql, assert.AnError)
	assert.Equal(t, 1, logs.FilterMessage("sql failed").Len())
}
