package roomcast

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tokmz/roomcast/pkg/errors"
)

// HandlerFunc 处理函数与中间件共用的签名，中间件通过 c.Next() 继续调用链
type HandlerFunc func(*Context)

func adapt(fns ...HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(fns))
	for _, fn := range fns {
		if fn == nil {
			panic("roomcast: nil handler")
		}
		out = append(out, func(gc *gin.Context) { fn(&Context{gc: gc}) })
	}
	return out
}

// RouterGroup 共享路径前缀和中间件的一组路由
type RouterGroup struct {
	g *gin.RouterGroup
}

func (rg *RouterGroup) Group(prefix string, mw ...HandlerFunc) *RouterGroup {
	return &RouterGroup{g: rg.g.Group(prefix, adapt(mw...)...)}
}

func (rg *RouterGroup) Use(mw ...HandlerFunc) {
	rg.g.Use(adapt(mw...)...)
}

func (rg *RouterGroup) GET(path string, h HandlerFunc, mw ...HandlerFunc) {
	rg.handle(http.MethodGet, path, h, mw)
}

func (rg *RouterGroup) POST(path string, h HandlerFunc, mw ...HandlerFunc) {
	rg.handle(http.MethodPost, path, h, mw)
}

func (rg *RouterGroup) PUT(path string, h HandlerFunc, mw ...HandlerFunc) {
	rg.handle(http.MethodPut, path, h, mw)
}

func (rg *RouterGroup) PATCH(path string, h HandlerFunc, mw ...HandlerFunc) {
	rg.handle(http.MethodPatch, path, h, mw)
}

func (rg *RouterGroup) DELETE(path string, h HandlerFunc, mw ...HandlerFunc) {
	rg.handle(http.MethodDelete, path, h, mw)
}

func (rg *RouterGroup) handle(method, path string, h HandlerFunc, mw []HandlerFunc) {
	chain := make([]HandlerFunc, 0, len(mw)+1)
	rg.g.Handle(method, path, adapt(append(append(chain, mw...), h)...)...)
}

// Register 是 RouterGroup 上任一方法注册函数，如 rg.GET
type Register func(path string, h HandlerFunc, mw ...HandlerFunc)

// Handle 注册一个带请求和响应类型的接口。
// 请求先绑定路径参数，GET/DELETE 再绑定 query，其他方法按 Content-Type 绑定 body；
// binding 校验失败返回 ErrBadRequest
func Handle[Req, Resp any](reg Register, path string, fn func(*Context, *Req) (*Resp, error), mw ...HandlerFunc) {
	reg(path, func(c *Context) {
		req := new(Req)
		if err := bind(c, req); err != nil {
			c.RespondError(err)
			return
		}
		resp, err := fn(c, req)
		if err != nil {
			c.RespondError(err)
			return
		}
		c.Success(resp)
	}, mw...)
}

// Handle0 同 Handle，但成功时 data 为 null
func Handle0[Req any](reg Register, path string, fn func(*Context, *Req) error, mw ...HandlerFunc) {
	reg(path, func(c *Context) {
		req := new(Req)
		if err := bind(c, req); err != nil {
			c.RespondError(err)
			return
		}
		if err := fn(c, req); err != nil {
			c.RespondError(err)
			return
		}
		c.Success(nil)
	}, mw...)
}

// HandleOnly 注册无请求参数的接口
func HandleOnly[Resp any](reg Register, path string, fn func(*Context) (*Resp, error), mw ...HandlerFunc) {
	reg(path, func(c *Context) {
		resp, err := fn(c)
		if err != nil {
			c.RespondError(err)
			return
		}
		c.Success(resp)
	}, mw...)
}

func bind(c *Context, obj any) error {
	// 路径参数只做映射，required 等规则留到下一步统一校验
	_ = c.gc.ShouldBindUri(obj)

	var err error
	switch c.gc.Request.Method {
	case http.MethodGet, http.MethodDelete:
		err = c.gc.ShouldBindQuery(obj)
	default:
		err = c.gc.ShouldBind(obj)
	}
	if err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	return nil
}
