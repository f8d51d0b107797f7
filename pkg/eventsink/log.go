package eventsink

import (
	"context"

	"github.com/tokmz/roomcast/pkg/logger"
	"go.uber.org/zap"
)

// LogSink 把事件写入日志，用于本地调试
type LogSink struct {
	log logger.Logger
}

// NewLogSink 创建日志 Sink
func NewLogSink(log logger.Logger) *LogSink {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSink{log: log.Named("events")}
}

func (s *LogSink) Publish(ctx context.Context, r Record) error {
	s.log.InfoContext(ctx, r.Type,
		zap.String("conn_id", r.ConnID),
		zap.String("room_id", r.RoomID),
		zap.String("user_id", r.UserID),
		zap.String("message_id", r.MessageID),
		zap.Strings("members", r.Members),
		zap.Time("time", r.Time),
	)
	return nil
}

func (s *LogSink) Close() error { return nil }
