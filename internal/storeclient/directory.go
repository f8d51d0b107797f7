package storeclient

import (
	"context"
	"slices"
	"time"

	"github.com/tokmz/roomcast/internal/store"
	"github.com/tokmz/roomcast/pkg/cache"
	"github.com/tokmz/roomcast/pkg/logger"
	"go.uber.org/zap"
)

// DefaultDirectoryTTL 目录缓存的默认有效期
const DefaultDirectoryTTL = time.Minute

// Directory 在 Client 之上缓存房间、成员和用户查询
//
// 同一 key 的并发回源只执行一次；成员变更经由 Directory 写入时立即失效相关 key，
// 其他客户端的写入在 TTL 后可见。
type Directory struct {
	client *Client
	group  *cache.Group
	ttl    time.Duration
	log    logger.Logger
}

// DirectoryOption Directory 配置项
type DirectoryOption func(*Directory)

// WithTTL 设置缓存有效期
func WithTTL(ttl time.Duration) DirectoryOption {
	return func(d *Directory) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithDirectoryLogger 设置日志器
func WithDirectoryLogger(l logger.Logger) DirectoryOption {
	return func(d *Directory) {
		if l != nil {
			d.log = l
		}
	}
}

// NewDirectory 创建缓存目录
func NewDirectory(client *Client, c cache.Cache, opts ...DirectoryOption) *Directory {
	d := &Directory{
		client: client,
		group:  cache.NewGroup(cache.NewTracing(c)),
		ttl:    DefaultDirectoryTTL,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Client 返回底层未缓存的客户端
func (d *Directory) Client() *Client { return d.client }

func roomKey(id string) string    { return "room:" + id }
func membersKey(id string) string { return "room:" + id + ":members" }
func userKey(id string) string    { return "user:" + id }

func (d *Directory) Room(ctx context.Context, id string) (*store.Room, error) {
	return cache.RememberWithLock(ctx, d.group, roomKey(id), d.ttl, func() (*store.Room, error) {
		return d.client.GetRoom(ctx, id)
	})
}

func (d *Directory) Members(ctx context.Context, roomID string) ([]store.User, error) {
	return cache.RememberWithLock(ctx, d.group, membersKey(roomID), d.ttl, func() ([]store.User, error) {
		return d.client.Members(ctx, roomID)
	})
}

func (d *Directory) User(ctx context.Context, id string) (*store.User, error) {
	return cache.RememberWithLock(ctx, d.group, userKey(id), d.ttl, func() (*store.User, error) {
		return d.client.GetUser(ctx, id)
	})
}

// IsMember 基于缓存的成员列表判断
func (d *Directory) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	members, err := d.Members(ctx, roomID)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(members, func(u store.User) bool { return u.ID == userID }), nil
}

func (d *Directory) AddMembers(ctx context.Context, roomID string, userIDs ...string) (*store.Room, error) {
	room, err := d.client.AddMembers(ctx, roomID, userIDs...)
	d.Invalidate(ctx, roomID)
	return room, err
}

func (d *Directory) RemoveMember(ctx context.Context, roomID, userID string) (*store.Room, error) {
	room, err := d.client.RemoveMember(ctx, roomID, userID)
	d.Invalidate(ctx, roomID)
	return room, err
}

func (d *Directory) UpdateRoom(ctx context.Context, id string, in UpdateRoomInput) (*store.Room, error) {
	room, err := d.client.UpdateRoom(ctx, id, in)
	d.Invalidate(ctx, id)
	return room, err
}

func (d *Directory) DeleteRoom(ctx context.Context, id string) (*store.Room, error) {
	room, err := d.client.DeleteRoom(ctx, id)
	d.Invalidate(ctx, id)
	return room, err
}

// Invalidate 丢弃房间及其成员的缓存
func (d *Directory) Invalidate(ctx context.Context, roomID string) {
	keys := []string{roomKey(roomID), membersKey(roomID)}
	for _, k := range keys {
		d.group.Forget(k)
	}
	if err := d.group.Delete(ctx, keys...); err != nil {
		d.log.WarnContext(ctx, "directory invalidate failed", zap.String("room_id", roomID), zap.Error(err))
	}
}
