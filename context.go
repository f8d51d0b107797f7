package roomcast

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/logger"
)

// gin 上下文中的保留键
const (
	keyTraceID = "trace_id"
	keyUserID  = "uid"
)

// Response 所有 JSON 接口共用的返回信封，成功时 code 为 200
type Response struct {
	Code    int    `json:"code"`
	Data    any    `json:"data"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// Context 包装 gin.Context，处理函数只能看到这里列出的方法
type Context struct {
	gc *gin.Context
}

func (c *Context) Request() *http.Request { return c.gc.Request }
func (c *Context) Writer() gin.ResponseWriter { return c.gc.Writer }
func (c *Context) ClientIP() string { return c.gc.ClientIP() }
func (c *Context) GetHeader(key string) string { return c.gc.GetHeader(key) }
func (c *Context) Set(key string, value any) { c.gc.Set(key, value) }
func (c *Context) Get(key string) (any, bool) { return c.gc.Get(key) }
func (c *Context) GetString(key string) string { return c.gc.GetString(key) }
func (c *Context) Next() { c.gc.Next() }
func (c *Context) Abort() { c.gc.Abort() }

// FullPath 返回匹配到的路由模板，如 /rooms/:id；未匹配时为空
func (c *Context) FullPath() string { return c.gc.FullPath() }

// SetContextTraceID 记录本次请求的 trace id，响应信封和日志都会带上
func SetContextTraceID(c *Context, traceID string) { c.Set(keyTraceID, traceID) }

// SetContextUserID 记录发起请求的用户
func SetContextUserID(c *Context, userID string) { c.Set(keyUserID, userID) }

func (c *Context) traceID() string { return c.GetString(keyTraceID) }

// RequestContext 返回交给 service 层的 context，
// 已注入 trace id 和用户 id，logger 的 *Context 方法会取出它们
func (c *Context) RequestContext() context.Context {
	ctx := c.gc.Request.Context()
	if id := c.traceID(); id != "" {
		ctx = logger.ContextWithTraceID(ctx, id)
	}
	if uid := c.GetString(keyUserID); uid != "" {
		ctx = logger.ContextWithUID(ctx, uid)
	}
	return ctx
}

// SetRequestContext 替换请求的 context，tracing 中间件用它挂 span
func (c *Context) SetRequestContext(ctx context.Context) {
	c.gc.Request = c.gc.Request.WithContext(ctx)
}

// Success 以 HTTP 200 返回 data
func (c *Context) Success(data any) {
	c.write(http.StatusOK, Response{Code: http.StatusOK, Data: data, Message: "success"})
}

// RespondError 按错误码返回。非 *errors.Error 的错误一律视为 ErrServer，
// 但保留原始错误文本
func (c *Context) RespondError(err error) {
	var e *errors.Error
	if !errors.As(err, &e) {
		e = errors.ErrServer
		if err != nil {
			e = e.WithMessage(err.Error())
		}
	}
	c.write(e.HttpCode, Response{Code: e.Code, Message: e.Message})
}

func (c *Context) write(status int, resp Response) {
	resp.TraceID = c.traceID()
	c.gc.JSON(status, resp)
}
