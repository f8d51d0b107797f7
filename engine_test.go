package roomcast

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/logger"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type roomReq struct {
	ID   string `uri:"id"`
	Name string `json:"name" binding:"required"`
}

type roomResp struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type listReq struct {
	UserID string `form:"userId" binding:"required"`
	Limit  int    `form:"limit"`
}

var errRoomMissing = errors.New(5004, "room not found", http.StatusNotFound)

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func testEngine(opts ...Option) *Engine {
	return New(append([]Option{WithMode("test")}, opts...)...)
}

func TestHandle_BindsURIAndBody(t *testing.T) {
	e := testEngine()
	rg := e.Group("/api")
	Handle[roomReq, roomResp](rg.PUT, "/rooms/:id", func(c *Context, req *roomReq) (*roomResp, error) {
		return &roomResp{ID: req.ID, Name: req.Name}, nil
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPut, "/api/rooms/r1", strings.NewReader(`{"name":"general"}`))
	r.Header.Set("Content-Type", "application/json")
	e.Handler().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, map[string]any{"id": "r1", "name": "general"}, resp.Data)
}

func TestHandle_ValidationError(t *testing.T) {
	e := testEngine()
	Handle[roomReq, roomResp](e.RouterGroup().PUT, "/rooms/:id", func(c *Context, req *roomReq) (*roomResp, error) {
		t.Fatal("handler must not run")
		return nil, nil
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPut, "/rooms/r1", strings.NewReader(`{}`))
	r.Header.Set("Content-Type", "application/json")
	e.Handler().ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, errors.ErrBadRequest.Code, decode(t, w).Code)
}

func TestHandle_QueryBinding(t *testing.T) {
	e := testEngine()
	Handle[listReq, listReq](e.RouterGroup().GET, "/rooms", func(c *Context, req *listReq) (*listReq, error) {
		return req, nil
	})

	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rooms?userId=u1&limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]any)
	assert.Equal(t, "u1", data["UserID"])
	assert.EqualValues(t, 5, data["Limit"])

	w = httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRespondError(t *testing.T) {
	e := testEngine()
	rg := e.RouterGroup()
	HandleOnly[roomResp](rg.GET, "/coded", func(c *Context) (*roomResp, error) {
		return nil, errRoomMissing.WithError(context.Canceled)
	})
	HandleOnly[roomResp](rg.GET, "/plain", func(c *Context) (*roomResp, error) {
		return nil, context.DeadlineExceeded
	})
	Handle0[listReq](rg.DELETE, "/nothing", func(c *Context, req *listReq) error {
		return nil
	})

	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/coded", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp := decode(t, w)
	assert.Equal(t, 5004, resp.Code)
	assert.Equal(t, "room not found", resp.Message)
	assert.Nil(t, resp.Data)

	w = httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp = decode(t, w)
	assert.Equal(t, errors.ErrServer.Code, resp.Code)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Message)

	w = httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/nothing?userId=u1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decode(t, w).Message)
}

func TestTraceIDInEnvelope(t *testing.T) {
	e := testEngine()
	e.Use(func(c *Context) {
		SetContextTraceID(c, "trace-1")
		SetContextUserID(c, "u1")
		c.Next()
	})
	var ctx context.Context
	e.RouterGroup().GET("/ping", func(c *Context) {
		ctx = c.RequestContext()
		c.Success("pong")
	})

	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	resp := decode(t, w)
	assert.Equal(t, "trace-1", resp.TraceID)
	assert.Equal(t, "pong", resp.Data)

	core, logs := observer.New(zapcore.DebugLevel)
	logger.NewWithCore(core).InfoContext(ctx, "handled")
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "u1", fields["uid"])
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := testEngine(WithLogger(logger.NewWithCore(core)))
	e.RouterGroup().GET("/boom", func(c *Context) {
		panic("boom")
	})

	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrServer.Code, decode(t, w).Code)
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := Default(WithMode("test"), WithLogger(logger.NewWithCore(core)))
	HandleOnly[roomResp](e.RouterGroup().GET, "/missing", func(c *Context) (*roomResp, error) {
		return nil, errRoomMissing
	})

	w := httptest.NewRecorder()
	e.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.EqualValues(t, http.StatusNotFound, entries[0].ContextMap()["status"])
}

func TestServeListener_GracefulShutdown(t *testing.T) {
	var before, after bool
	e := testEngine(
		WithShutdownTimeout(time.Second),
		WithBeforeShutdown(func(context.Context) { before = true }),
		WithAfterShutdown(func() { after = true }),
	)
	e.RouterGroup().GET("/healthz", func(c *Context) { c.Success("ok") })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, before)
	assert.True(t, after)
}

func TestAccessLog_SkipsHealthz(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := Default(WithMode("test"), WithLogger(logger.NewWithCore(core)))
	e.RouterGroup().GET("/healthz", func(c *Context) { c.Success("ok") })
	e.RouterGroup().GET("/rooms", func(c *Context) { c.Success(nil) })

	for _, path := range []string{"/healthz", "/rooms"} {
		e.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	entries := logs.FilterMessage("request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/rooms", entries[0].ContextMap()["path"])
	assert.Equal(t, "/rooms", entries[0].ContextMap()["route"])
}
