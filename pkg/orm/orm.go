package orm

import (
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

// New 创建 GORM 数据库实例
func New(cfg *Config) (*gorm.DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector(cfg.Type, cfg.DSN), &gorm.Config{
		SkipDefaultTransaction: cfg.SkipDefaultTransaction,
		PrepareStmt:            cfg.PrepareStmt,
		DisableAutomaticPing:   cfg.DisableAutomaticPing,
		Logger:                 newGormLogger(cfg),
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   cfg.TablePrefix,
			SingularTable: cfg.SingularTable,
		},
	})
	if err != nil {
		return nil, ErrConnect.WithError(err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, ErrConnect.WithError(err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if cfg.ReadWriteSplit != nil {
		if err := useReplicas(db, cfg); err != nil {
			return nil, ErrConnect.WithError(err)
		}
	}
	if cfg.Tracing {
		if err := db.Use(&tracePlugin{statements: cfg.TraceStatements}); err != nil {
			return nil, ErrConnect.WithError(err)
		}
	}

	return db, nil
}

// Close 关闭底层连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialector(t DBType, dsn string) gorm.Dialector {
	switch t {
	case PostgreSQL:
		return postgres.Open(dsn)
	case SQLite:
		return sqlite.Open(dsn)
	case SQLServer:
		return sqlserver.Open(dsn)
	default:
		return mysql.Open(dsn)
	}
}

// useReplicas 注册 dbresolver：写走主库，读在从库间负载均衡
func useReplicas(db *gorm.DB, cfg *Config) error {
	rw := cfg.ReadWriteSplit

	replicas := make([]gorm.Dialector, 0, len(rw.Sources))
	for _, dsn := range rw.Sources {
		replicas = append(replicas, dialector(cfg.Type, dsn))
	}

	resolver := dbresolver.Register(dbresolver.Config{
		Replicas: replicas,
		Policy:   policy(rw.Policy),
	})

	resolver.SetMaxIdleConns(orDefault(rw.MaxIdleConns, cfg.MaxIdleConns))
	resolver.SetMaxOpenConns(orDefault(rw.MaxOpenConns, cfg.MaxOpenConns))
	resolver.SetConnMaxLifetime(orDefault(rw.ConnMaxLifetime, cfg.ConnMaxLifetime))
	resolver.SetConnMaxIdleTime(orDefault(rw.ConnMaxIdleTime, cfg.ConnMaxIdleTime))

	return db.Use(resolver)
}

func policy(name string) dbresolver.Policy {
	if name == "round_robin" {
		return dbresolver.RoundRobinPolicy()
	}
	return dbresolver.RandomPolicy{}
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
