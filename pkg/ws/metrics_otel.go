package ws

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics 基于 OpenTelemetry Meter 的监控实现
type OTelMetrics struct {
	connections   metric.Int64UpDownCounter
	rooms         metric.Int64Gauge
	frames        metric.Int64Counter
	invalidFrames metric.Int64Counter
	droppedFrames metric.Int64Counter
	deadPeers     metric.Int64Counter
	fanout        metric.Int64Histogram
	latency       metric.Float64Histogram
}

// NewOTelMetrics 创建 OTel 监控
func NewOTelMetrics(meter metric.Meter) (*OTelMetrics, error) {
	m := &OTelMetrics{}
	var err error

	if m.connections, err = meter.Int64UpDownCounter("roomcast.relay.connections",
		metric.WithDescription("Live relay connections")); err != nil {
		return nil, err
	}
	if m.rooms, err = meter.Int64Gauge("roomcast.relay.rooms",
		metric.WithDescription("Rooms with at least one member")); err != nil {
		return nil, err
	}
	if m.frames, err = meter.Int64Counter("roomcast.relay.frames",
		metric.WithDescription("Inbound frames by type")); err != nil {
		return nil, err
	}
	if m.invalidFrames, err = meter.Int64Counter("roomcast.relay.frames.invalid"); err != nil {
		return nil, err
	}
	if m.droppedFrames, err = meter.Int64Counter("roomcast.relay.frames.dropped",
		metric.WithDescription("Outbound frames dropped on full send queues")); err != nil {
		return nil, err
	}
	if m.deadPeers, err = meter.Int64Counter("roomcast.relay.dead_peers"); err != nil {
		return nil, err
	}
	if m.fanout, err = meter.Int64Histogram("roomcast.relay.broadcast.recipients"); err != nil {
		return nil, err
	}
	if m.latency, err = meter.Float64Histogram("roomcast.relay.broadcast.duration",
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *OTelMetrics) IncrementConnections() {
	m.connections.Add(context.Background(), 1)
}

func (m *OTelMetrics) DecrementConnections() {
	m.connections.Add(context.Background(), -1)
}

func (m *OTelMetrics) SetRoomCount(count int) {
	m.rooms.Record(context.Background(), int64(count))
}

func (m *OTelMetrics) IncrementFrames(frameType string) {
	m.frames.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", frameType)))
}

func (m *OTelMetrics) IncrementInvalidFrames() {
	m.invalidFrames.Add(context.Background(), 1)
}

func (m *OTelMetrics) IncrementDroppedFrames() {
	m.droppedFrames.Add(context.Background(), 1)
}

func (m *OTelMetrics) RecordBroadcast(recipients int, d time.Duration) {
	ctx := context.Background()
	m.fanout.Record(ctx, int64(recipients))
	m.latency.Record(ctx, float64(d.Microseconds())/1000)
}

func (m *OTelMetrics) IncrementDeadPeers() {
	m.deadPeers.Add(context.Background(), 1)
}
