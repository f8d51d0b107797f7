package request

import (
	"encoding/json"
	"net/http"

	"github.com/tokmz/roomcast/pkg/errors"
)

// envelope 服务端统一响应 {code, data, message, trace_id}
type envelope struct {
	Code    int             `json:"code"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	TraceID string          `json:"trace_id,omitempty"`
}

// DoEnvelope 发送请求并返回信封里的 data。
// code 不是 200 时返回携带服务端 code、message 与 HTTP 状态的 *errors.Error，
// 可以直接与服务端定义的哨兵错误做 errors.Is 比较
func DoEnvelope[T any](req *Request) (*T, error) {
	resp, err := req.Do()
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		if resp.IsError() {
			return nil, statusError(resp)
		}
		return nil, ErrUnmarshal.WithError(err)
	}

	if env.Code != http.StatusOK {
		return nil, &errors.Error{
			Code:     env.Code,
			Message:  env.Message,
			HttpCode: resp.StatusCode,
		}
	}

	var result T
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &result, nil
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return nil, ErrUnmarshal.WithError(err)
	}
	return &result, nil
}
