package main

import (
	"context"
	"time"

	"github.com/tokmz/roomcast"
	"github.com/tokmz/roomcast/internal/settings"
	"github.com/tokmz/roomcast/internal/store"
	"github.com/tokmz/roomcast/middleware"
	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/orm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const poolStatsInterval = time.Minute

// ErrUnhealthy 数据库不可达
var ErrUnhealthy = errors.New(1006, "database unavailable", 503)

type app struct {
	cfg    *settings.Store
	log    logger.Logger
	db     *gorm.DB
	repo   *store.Repository
	engine *roomcast.Engine
}

func newApp(ctx context.Context, cfg *settings.Store, log logger.Logger) (*app, error) {
	dbCfg := cfg.Database
	dbCfg.Logger = log.Named("sql")
	db, err := orm.New(&dbCfg)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db); err != nil {
		_ = orm.Close(db)
		return nil, store.ErrDatabase.WithError(err)
	}

	a := &app{cfg: cfg, log: log, db: db, repo: store.NewRepository(db)}
	if cfg.Seed.File != "" {
		if err := a.seed(ctx, cfg.Seed.File); err != nil {
			_ = orm.Close(db)
			return nil, err
		}
	}

	a.engine = roomcast.Default(append(cfg.Server.Options(), roomcast.WithLogger(log))...)
	a.routes()
	return a, nil
}

func (a *app) seed(ctx context.Context, path string) error {
	seed, err := store.LoadSeed(path)
	if err != nil {
		return err
	}
	if err := a.repo.ApplySeed(ctx, seed); err != nil {
		return err
	}
	a.log.Info("seed applied",
		zap.String("file", path),
		zap.Int("users", len(seed.Users)),
		zap.Int("rooms", len(seed.Rooms)),
	)
	return nil
}

type healthResp struct {
	Status string `json:"status"`
}

func (a *app) routes() {
	r := a.engine.RouterGroup()
	if a.cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(&middleware.TracingConfig{
			TracerName:   "roomcast.chatstore",
			ExcludePaths: []string{"/healthz"},
		}))
	}

	roomcast.HandleOnly[healthResp](r.GET, "/healthz", func(c *roomcast.Context) (*healthResp, error) {
		sqlDB, err := a.db.DB()
		if err != nil {
			return nil, ErrUnhealthy.WithError(err)
		}
		if err := sqlDB.PingContext(c.RequestContext()); err != nil {
			return nil, ErrUnhealthy.WithError(err)
		}
		return &healthResp{Status: "ok"}, nil
	})

	store.NewHandler(a.repo, a.log).Register(r.Group("/api"))
}

func (a *app) run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.engine.Serve(gctx)
	})
	g.Go(func() error {
		a.reportPool(gctx)
		return nil
	})
	return g.Wait()
}

func (a *app) reportPool(ctx context.Context) {
	sqlDB, err := a.db.DB()
	if err != nil {
		return
	}
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := sqlDB.Stats()
			a.log.Debug("db pool",
				zap.Int("open", s.OpenConnections),
				zap.Int("in_use", s.InUse),
				zap.Int("idle", s.Idle),
				zap.Int64("wait_count", s.WaitCount),
			)
		}
	}
}

func (a *app) close() {
	if err := orm.Close(a.db); err != nil {
		a.log.Warn("close database failed", zap.Error(err))
	}
}
