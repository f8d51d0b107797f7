package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokmz/roomcast"
	"github.com/tokmz/roomcast/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func get(e *roomcast.Engine, path string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		r.Header[k] = v
	}
	r.RemoteAddr = "10.0.0.1:1234"
	e.Handler().ServeHTTP(w, r)
	return w
}

func TestRateLimiter(t *testing.T) {
	e := roomcast.New(roomcast.WithMode("test"))
	e.Use(RateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 0.001,
		Burst:             2,
		ExcludePaths:      []string{"/healthz"},
	}))
	ok := func(c *roomcast.Context) { c.Success("ok") }
	e.RouterGroup().GET("/ws", ok)
	e.RouterGroup().GET("/healthz", ok)

	assert.Equal(t, http.StatusOK, get(e, "/ws", nil).Code)
	assert.Equal(t, http.StatusOK, get(e, "/ws", nil).Code)

	w := get(e, "/ws", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	var resp roomcast.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, errors.ErrTooManyRequests.Code, resp.Code)

	for range 5 {
		assert.Equal(t, http.StatusOK, get(e, "/healthz", nil).Code)
	}
}

func TestRateLimiter_PerKey(t *testing.T) {
	e := roomcast.New(roomcast.WithMode("test"))
	e.Use(RateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 0.001,
		Burst:             1,
		KeyFunc:           func(c *roomcast.Context) string { return c.GetHeader("X-User") },
	}))
	e.RouterGroup().GET("/ws", func(c *roomcast.Context) { c.Success("ok") })

	a := http.Header{"X-User": {"a"}}
	b := http.Header{"X-User": {"b"}}
	assert.Equal(t, http.StatusOK, get(e, "/ws", a).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(e, "/ws", a).Code)
	assert.Equal(t, http.StatusOK, get(e, "/ws", b).Code)
}

func TestTokenBucketRefill(t *testing.T) {
	b := newTokenBucket(10, 1)
	now := b.lastRefill
	assert.True(t, b.allow(now))
	assert.False(t, b.allow(now))
	assert.True(t, b.allow(now.Add(100*time.Millisecond)))
}

func TestTracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
		_ = tp.Shutdown(context.Background())
	})

	e := roomcast.New(roomcast.WithMode("test"))
	e.Use(Tracing(&TracingConfig{ExcludePaths: []string{"/healthz"}}))
	e.RouterGroup().GET("/api/rooms/:roomId/members", func(c *roomcast.Context) { c.Success([]string{}) })
	e.RouterGroup().GET("/healthz", func(c *roomcast.Context) { c.Success("ok") })

	parent := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	w := get(e, "/api/rooms/r1/members", http.Header{"Traceparent": {parent}})
	require.Equal(t, http.StatusOK, w.Code)
	get(e, "/healthz", nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "GET /api/rooms/:roomId/members", span.Name())
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())

	var resp roomcast.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", resp.TraceID)
	assert.Contains(t, w.Header().Get("Traceparent"), "4bf92f3577b34da6a3ce929d0e0e4736")
}
