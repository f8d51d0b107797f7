package ws

import "time"

// Metrics 监控接口
type Metrics interface {
	// 连接指标
	IncrementConnections()
	DecrementConnections()

	// 房间指标
	SetRoomCount(count int)

	// 帧指标
	IncrementFrames(frameType string)
	IncrementInvalidFrames()
	IncrementDroppedFrames()
	RecordBroadcast(recipients int, d time.Duration)

	// 心跳
	IncrementDeadPeers()
}

// NoopMetrics 空实现（默认）
type NoopMetrics struct{}

func (NoopMetrics) IncrementConnections()              {}
func (NoopMetrics) DecrementConnections()              {}
func (NoopMetrics) SetRoomCount(int)                   {}
func (NoopMetrics) IncrementFrames(string)             {}
func (NoopMetrics) IncrementInvalidFrames()            {}
func (NoopMetrics) IncrementDroppedFrames()            {}
func (NoopMetrics) RecordBroadcast(int, time.Duration) {}
func (NoopMetrics) IncrementDeadPeers()                {}
