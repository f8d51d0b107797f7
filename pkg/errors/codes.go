package errors

// 通用错误码（1000 段）
var (
	// ErrServer 服务器错误
	ErrServer = New(1000, "internal server error", 500)
	// ErrBadRequest 客户端请求错误
	ErrBadRequest = New(1001, "bad request", 400)
	// ErrUnauthorized 未授权
	ErrUnauthorized = New(1002, "unauthorized", 401)
	// ErrForbidden 禁止访问
	ErrForbidden = New(1003, "forbidden", 403)
	// ErrNotFound 资源不存在
	ErrNotFound = New(1004, "not found", 404)
	// ErrTooManyRequests 请求过于频繁
	ErrTooManyRequests = New(1005, "too many requests", 429)
)
