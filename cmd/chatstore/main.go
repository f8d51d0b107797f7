// chatstore 房间、成员与消息历史的存储服务
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tokmz/roomcast/internal/settings"
	"github.com/tokmz/roomcast/pkg/tracing"
	"go.uber.org/zap"
)

func main() {
	path := flag.String("config", "configs/chatstore.yaml", "config file, empty for defaults and env only")
	seed := flag.String("seed", "", "seed file, overrides seed.file")
	flag.Parse()

	if err := run(*path, *seed); err != nil {
		fmt.Fprintf(os.Stderr, "chatstore: %v\n", err)
		os.Exit(1)
	}
}

func run(path, seed string) error {
	cfg, conf, err := settings.Load[settings.Store](path, settings.StoreDefaults(), nil)
	if err != nil {
		return err
	}
	defer conf.Close()
	if seed != "" {
		cfg.Seed.File = seed
	}

	log, err := cfg.Log.Build()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	log.Info("chatstore starting",
		zap.String("config", conf.ConfigFileUsed()),
		zap.String("database", string(cfg.Database.Type)),
	)
	return a.run(ctx)
}
