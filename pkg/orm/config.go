package orm

import (
	"time"

	"github.com/tokmz/roomcast/pkg/logger"
)

// DBType 数据库类型
type DBType string

const (
	MySQL      DBType = "mysql"
	PostgreSQL DBType = "postgres"
	SQLite     DBType = "sqlite"
	SQLServer  DBType = "sqlserver"
)

// Config 数据库配置，mapstructure 标签用于从配置文件加载
type Config struct {
	Type DBType `mapstructure:"type"` // mysql, postgres, sqlite, sqlserver
	DSN  string `mapstructure:"dsn"`

	// 连接池
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	SkipDefaultTransaction bool `mapstructure:"skip_default_transaction"`
	PrepareStmt            bool `mapstructure:"prepare_stmt"`
	DisableAutomaticPing   bool `mapstructure:"disable_automatic_ping"`

	// 日志级别 (1:Silent 2:Error 3:Warn 4:Info)
	LogLevel      int           `mapstructure:"log_level"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`

	TablePrefix   string `mapstructure:"table_prefix"`
	SingularTable bool   `mapstructure:"singular_table"`

	// Tracing 注册 otel 追踪插件
	Tracing bool `mapstructure:"tracing"`
	// TraceStatements 把 SQL 文本写进 span，消息内容会随之进入 trace 后端
	TraceStatements bool `mapstructure:"trace_statements"`

	// ReadWriteSplit 读写分离（可选）
	ReadWriteSplit *ReadWriteSplitConfig `mapstructure:"read_write_split"`

	// Logger SQL 日志输出，nil 时不输出
	Logger logger.Logger `mapstructure:"-"`
}

// ReadWriteSplitConfig 读写分离配置
type ReadWriteSplitConfig struct {
	Sources []string `mapstructure:"sources"` // 从库 DSN 列表（只读）
	Policy  string   `mapstructure:"policy"`  // random, round_robin

	// 从库连接池，零值沿用主库配置
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Type:            MySQL,
		MaxIdleConns:    10,
		MaxOpenConns:    100,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		PrepareStmt:     true,
		LogLevel:        3, // Warn
		SlowThreshold:   200 * time.Millisecond,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.DSN == "" {
		return ErrInvalidConfig.WithMessage("orm: dsn is required")
	}
	switch c.Type {
	case MySQL, PostgreSQL, SQLite, SQLServer:
	default:
		return ErrInvalidConfig.WithMessage("orm: unsupported database type " + string(c.Type))
	}
	if c.ReadWriteSplit != nil && len(c.ReadWriteSplit.Sources) == 0 {
		return ErrInvalidConfig.WithMessage("orm: read-write split requires at least one source")
	}
	return nil
}
