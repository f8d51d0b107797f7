// relayd 房间制 WebSocket 中继服务
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/tokmz/roomcast/internal/settings"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/tracing"
	"go.uber.org/zap"
)

func main() {
	path := flag.String("config", "configs/relayd.yaml", "config file, empty for defaults and env only")
	flag.Parse()

	if err := run(*path); err != nil {
		fmt.Fprintf(os.Stderr, "relayd: %v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	var live atomic.Value
	cfg, conf, err := settings.Load(path, settings.RelayDefaults(), func(next *settings.Relay) {
		if log, ok := live.Load().(logger.Logger); ok {
			reloadLevel(log, next.Log.Level)
		}
	})
	if err != nil {
		return err
	}
	defer conf.Close()

	log, err := cfg.Log.Build()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	live.Store(log)

	if cfg.Tracing.Enabled {
		if _, err := tracing.NewTracerProvider(&cfg.Tracing); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx); err != nil {
				log.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Info("relayd starting",
		zap.String("config", conf.ConfigFileUsed()),
		zap.String("events", string(cfg.Events.Driver)),
		zap.Duration("heartbeat", cfg.Relay.HeartbeatInterval),
	)
	return a.run(ctx)
}

// reloadLevel 配置文件变更时只热更新日志级别，其余配置需重启生效
func reloadLevel(log logger.Logger, raw string) {
	level, err := logger.ParseLevel(raw)
	if err != nil {
		log.Warn("ignore invalid log level", zap.String("level", raw), zap.Error(err))
		return
	}
	if level != log.Level() {
		log.SetLevel(level)
		log.Info("log level changed", zap.String("level", raw))
	}
}
