package storeclient

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/tokmz/roomcast/internal/store"
	"github.com/tokmz/roomcast/pkg/request"
)

// Client 存储服务的类型化客户端
// baseURL 形如 http://127.0.0.1:2135/api
type Client struct {
	http *request.Client
}

// New 创建客户端，默认 10s 超时；GET、PUT、DELETE 失败会退避重试，POST 只发一次
func New(baseURL string, opts ...request.Option) *Client {
	defaults := []request.Option{
		request.WithBaseURL(baseURL),
		request.WithTimeout(10 * time.Second),
		request.WithRetry(request.DefaultRetryConfig()),
	}
	return &Client{http: request.New(append(defaults, opts...)...)}
}

func seg(id string) string { return url.PathEscape(id) }

// CreateMessageInput 新消息
type CreateMessageInput struct {
	Content string `json:"content"`
	UserID  string `json:"userId"`
	RoomID  string `json:"roomId"`
}

// CreateMessage 保存一条消息，发送者必须是房间成员
func (c *Client) CreateMessage(ctx context.Context, in CreateMessageInput) (*store.Message, error) {
	return request.DoEnvelope[store.Message](c.http.Post("/chat").SetContext(ctx).SetBody(in))
}

func (c *Client) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	return request.DoEnvelope[store.Message](c.http.Get("/chat/" + seg(id)).SetContext(ctx))
}

func (c *Client) UpdateMessage(ctx context.Context, id, content string) (*store.Message, error) {
	body := map[string]string{"content": content}
	return request.DoEnvelope[store.Message](c.http.Put("/chat/" + seg(id)).SetContext(ctx).SetBody(body))
}

func (c *Client) DeleteMessage(ctx context.Context, id string) (*store.Message, error) {
	return request.DoEnvelope[store.Message](c.http.Delete("/chat/" + seg(id)).SetContext(ctx))
}

// ListMessages 按时间倒序分页，cursor 为上一页返回的 NextCursor
func (c *Client) ListMessages(ctx context.Context, roomID string, limit int, cursor string) (*store.MessagePage, error) {
	req := c.http.Get("/chat").SetContext(ctx).SetQuery("roomId", roomID)
	if limit > 0 {
		req.SetQuery("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		req.SetQuery("cursor", cursor)
	}
	return request.DoEnvelope[store.MessagePage](req)
}

// Recent 用户所在各房间的最新一条消息
func (c *Client) Recent(ctx context.Context, userID string, limit int) ([]store.Message, error) {
	req := c.http.Get("/chat/recent").SetContext(ctx).SetQuery("userId", userID)
	if limit > 0 {
		req.SetQuery("limit", strconv.Itoa(limit))
	}
	return slice[store.Message](request.DoEnvelope[[]store.Message](req))
}

func (c *Client) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	return request.DoEnvelope[store.Room](c.http.Get("/rooms/" + seg(id)).SetContext(ctx))
}

// RoomsOf 用户加入的房间
func (c *Client) RoomsOf(ctx context.Context, userID string) ([]store.Room, error) {
	return slice[store.Room](request.DoEnvelope[[]store.Room](c.http.Get("/rooms").SetContext(ctx).SetQuery("userId", userID)))
}

// CreateRoomInput 新房间，创建者总是成员
type CreateRoomInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	CreatedBy   string   `json:"createdBy"`
	MemberIDs   []string `json:"memberIds,omitempty"`
}

func (c *Client) CreateRoom(ctx context.Context, in CreateRoomInput) (*store.Room, error) {
	return request.DoEnvelope[store.Room](c.http.Post("/rooms").SetContext(ctx).SetBody(in))
}

// UpdateRoomInput nil 字段保持不变，MemberIDs 非 nil 时整体替换成员
type UpdateRoomInput struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	MemberIDs   []string `json:"memberIds,omitempty"`
}

func (c *Client) UpdateRoom(ctx context.Context, id string, in UpdateRoomInput) (*store.Room, error) {
	return request.DoEnvelope[store.Room](c.http.Put("/rooms/" + seg(id)).SetContext(ctx).SetBody(in))
}

// DeleteRoom 删除房间及其消息
func (c *Client) DeleteRoom(ctx context.Context, id string) (*store.Room, error) {
	return request.DoEnvelope[store.Room](c.http.Delete("/rooms/" + seg(id)).SetContext(ctx))
}

func (c *Client) Members(ctx context.Context, roomID string) ([]store.User, error) {
	return slice[store.User](request.DoEnvelope[[]store.User](c.http.Get("/rooms/" + seg(roomID) + "/members").SetContext(ctx)))
}

func (c *Client) AddMembers(ctx context.Context, roomID string, userIDs ...string) (*store.Room, error) {
	body := map[string][]string{"userIds": userIDs}
	return request.DoEnvelope[store.Room](c.http.Post("/rooms/" + seg(roomID) + "/members").SetContext(ctx).SetBody(body))
}

// RemoveMember 创建者不能被移除
func (c *Client) RemoveMember(ctx context.Context, roomID, userID string) (*store.Room, error) {
	return request.DoEnvelope[store.Room](c.http.Delete("/rooms/" + seg(roomID) + "/members/" + seg(userID)).SetContext(ctx))
}

// CreateUser 写入目录用户，ID 为空时由服务端生成
func (c *Client) CreateUser(ctx context.Context, u store.User) (*store.User, error) {
	body := map[string]string{"id": u.ID, "name": u.Name, "email": u.Email, "image": u.Image}
	return request.DoEnvelope[store.User](c.http.Post("/users").SetContext(ctx).SetBody(body))
}

func (c *Client) GetUser(ctx context.Context, id string) (*store.User, error) {
	return request.DoEnvelope[store.User](c.http.Get("/users/" + seg(id)).SetContext(ctx))
}

func slice[T any](v *[]T, err error) ([]T, error) {
	if err != nil {
		return nil, err
	}
	return *v, nil
}
