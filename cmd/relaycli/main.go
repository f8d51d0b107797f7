// relaycli 终端聊天客户端
//
//	relaycli -user alice -name Alice -rooms general
//	relaycli -user bob -store http://127.0.0.1:2135/api -cache redis -redis 127.0.0.1:6379
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tokmz/roomcast/internal/storeclient"
	"github.com/tokmz/roomcast/pkg/cache"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/request"
	"github.com/tokmz/roomcast/pkg/session"
	"go.uber.org/zap"
)

type options struct {
	url         string
	user        string
	name        string
	store       string
	rooms       string
	backoffBase time.Duration
	backoffMax  time.Duration
	maxAttempts int
	dedup       uint
	cacheDriver string
	redisAddr   string
	cacheTTL    time.Duration
	logLevel    string
	logFile     string
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	def := session.DefaultConfig()
	fs := flag.NewFlagSet("relaycli", flag.ContinueOnError)
	fs.StringVar(&o.url, "url", "ws://127.0.0.1:2134/ws", "relay websocket url")
	fs.StringVar(&o.user, "user", "", "user id (required)")
	fs.StringVar(&o.name, "name", "", "display name, defaults to the user id")
	fs.StringVar(&o.store, "store", "", "store api base url, e.g. http://127.0.0.1:2135/api")
	fs.StringVar(&o.rooms, "rooms", "", "comma separated rooms to join on start")
	fs.DurationVar(&o.backoffBase, "backoff-base", def.BackoffBase, "reconnect backoff step")
	fs.DurationVar(&o.backoffMax, "backoff-max", def.BackoffMax, "reconnect backoff ceiling")
	fs.IntVar(&o.maxAttempts, "max-attempts", def.MaxAttempts, "consecutive failures before giving up")
	fs.UintVar(&o.dedup, "dedup", def.DedupCapacity, "chat message dedup capacity, 0 disables")
	fs.StringVar(&o.cacheDriver, "cache", "memory", "directory cache driver: memory|redis")
	fs.StringVar(&o.redisAddr, "redis", "127.0.0.1:6379", "redis address for -cache redis")
	fs.DurationVar(&o.cacheTTL, "cache-ttl", storeclient.DefaultDirectoryTTL, "directory cache ttl")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level")
	fs.StringVar(&o.logFile, "log", "", "log file, defaults to stdout")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.user == "" {
		return nil, fmt.Errorf("-user is required")
	}
	if o.name == "" {
		o.name = o.user
	}
	return o, nil
}

func (o *options) roomList() []string {
	var out []string
	for _, r := range strings.Split(o.rooms, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func (o *options) logger() (logger.Logger, error) {
	level, err := logger.ParseLevel(o.logLevel)
	if err != nil {
		return nil, err
	}
	opts := []logger.Option{logger.WithLevel(level), logger.WithFormat(logger.ConsoleFormat)}
	if o.logFile != "" {
		opts = append(opts, logger.WithFileOutput(o.logFile))
	} else {
		opts = append(opts, logger.WithConsoleOutput())
	}
	return logger.NewWithOptions(opts...)
}

func (o *options) cache() (cache.Cache, error) {
	switch o.cacheDriver {
	case "memory":
		return cache.NewWithOptions(cache.WithMemory(cache.DefaultMemoryConfig()), cache.WithDefaultTTL(o.cacheTTL))
	case "redis":
		rc := cache.DefaultRedisConfig()
		rc.Addr = o.redisAddr
		return cache.NewWithOptions(cache.WithRedis(rc), cache.WithKeyPrefix("roomcast:cli:"), cache.WithDefaultTTL(o.cacheTTL))
	}
	return nil, fmt.Errorf("unknown cache driver %q", o.cacheDriver)
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "relaycli: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, o, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "relaycli: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o *options, in io.Reader, out io.Writer) error {
	log, err := o.logger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var dir *storeclient.Directory
	if o.store != "" {
		c, err := o.cache()
		if err != nil {
			return err
		}
		defer c.Close()
		client := storeclient.New(o.store, request.WithInterceptor(request.NewLoggingInterceptor(log)))
		dir = storeclient.NewDirectory(client, c,
			storeclient.WithTTL(o.cacheTTL),
			storeclient.WithDirectoryLogger(log),
		)
	}

	sess, err := session.New(session.DefaultConfig(),
		session.WithURL(o.url),
		session.WithBackoff(o.backoffBase, o.backoffMax, o.maxAttempts),
		session.WithDedupCapacity(o.dedup),
		session.WithLogger(log),
	)
	if err != nil {
		return err
	}
	defer sess.Disconnect()

	con := newConsole(sess, dir, o.user, o.name, out, log)
	if err := sess.Connect(ctx); err != nil {
		// 首次连接失败时会话按退避策略继续重试
		log.Warn("initial connect failed", zap.String("url", o.url), zap.Error(err))
	}
	for _, room := range o.roomList() {
		if err := con.join(ctx, room); err != nil {
			con.printf("! join %s: %v\n", room, err)
		}
	}
	return con.Run(ctx, in)
}
